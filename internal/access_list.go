package internal

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/yl2chen/cidranger"
)

var (
	ipv4HostMask = net.CIDRMask(32, 32)
	ipv6HostMask = net.CIDRMask(128, 128)
)

// AccessList decides which client addresses may use the HTTP endpoints. An
// address in Deny is refused unless it is also in Allow.
type AccessList struct {
	Deny  cidranger.Ranger
	Allow cidranger.Ranger
}

func EmptyAccessList() AccessList {
	return AccessList{
		Deny:  cidranger.NewPCTrieRanger(),
		Allow: cidranger.NewPCTrieRanger(),
	}
}

// LoadAccessList reads the deny and allow files. An empty path yields an
// empty range set.
func LoadAccessList(denyPath string, allowPath string) (AccessList, error) {
	var acl AccessList
	var err error

	acl.Deny, err = parseRangeFile(denyPath)
	if err != nil {
		return acl, fmt.Errorf("deny list: %w", err)
	}

	acl.Allow, err = parseRangeFile(allowPath)
	if err != nil {
		return acl, fmt.Errorf("allow list: %w", err)
	}

	return acl, nil
}

func (acl *AccessList) Permits(ip net.IP) (bool, error) {
	if ip == nil {
		return true, nil
	}

	denied, err := acl.Deny.Contains(ip)
	if err != nil || !denied {
		return !denied, err
	}

	allowed, err := acl.Allow.Contains(ip)
	if err != nil {
		return false, err
	}

	return allowed, nil
}

// ClientIP prefers the X-Real-IP header set by a fronting proxy and falls
// back to the connection's remote address.
func ClientIP(r *http.Request) net.IP {
	if ip := net.ParseIP(r.Header.Get("X-Real-IP")); ip != nil {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	return net.ParseIP(host)
}

func parseRange(line string) (*net.IPNet, error) {
	_, ipnet, err := net.ParseCIDR(line)
	if err == nil {
		return ipnet, nil
	}

	ip := net.ParseIP(line)
	if ip == nil {
		return nil, fmt.Errorf("Failed to parse IP or IP subnet \"%s\"", line)
	}

	if ipv4 := ip.To4(); ipv4 != nil {
		return &net.IPNet{IP: ipv4, Mask: ipv4HostMask}, nil
	}

	return &net.IPNet{IP: ip.To16(), Mask: ipv6HostMask}, nil
}

func parseRanges(reader io.Reader) (cidranger.Ranger, error) {
	scanner := bufio.NewScanner(reader)
	ranger := cidranger.NewPCTrieRanger()

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}

		line = strings.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		ipnet, err := parseRange(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		err = ranger.Insert(cidranger.NewBasicRangerEntry(*ipnet))
		if err != nil {
			return nil, err
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return ranger, nil
}

func parseRangeFile(path string) (cidranger.Ranger, error) {
	if len(path) == 0 {
		return cidranger.NewPCTrieRanger(), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return parseRanges(file)
}
