package platform

import "strings"

// isTunnelInterface implements spec §4.1/§8's name predicate: prefix
// tun/wg/utun/ppp/candy, or the exact name sing-box.
func isTunnelInterface(name string) bool {
	if name == "sing-box" {
		return true
	}
	for _, prefix := range []string{"tun", "wg", "utun", "ppp", "candy"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
