package ipmi

import "strings"

// lastField returns the final whitespace-separated token of s, or "".
func lastField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// ParsePowerState extracts the power state from a response such as
// "Chassis Power is on" or "Chassis Power Control: Up/On". The last token
// wins, and of an "X/Y" pair only Y is kept.
func ParsePowerState(resp string) string {
	tok := lastField(resp)
	if i := strings.LastIndex(tok, "/"); i >= 0 {
		tok = tok[i+1:]
	}
	return strings.ToLower(tok)
}

// ParseBootDevice extracts the confirmed device from a response such as
// "Set Boot Device to pxe".
func ParseBootDevice(resp string) string {
	return strings.ToLower(lastField(resp))
}
