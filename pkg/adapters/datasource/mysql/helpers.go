package mysql

import (
	"net"
	"strconv"
	"strings"
)

// quoteName quotes with backticks, doubling embedded backticks.
func quoteName(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}

func buildFullyQualifiedName(database, table string) string {
	if database == "" {
		return quoteName(table)
	}
	return quoteName(database) + "." + quoteName(table)
}

func hostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
