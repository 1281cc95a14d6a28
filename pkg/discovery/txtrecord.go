package discovery

import (
	"fmt"
	"slices"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTXT creates the TXT records for info.
func EncodeTXT(info *ServerInfo) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeyName:    info.Name,
		TXTKeyVersion: info.Version,
	}
	if info.Root != "" {
		txt[TXTKeyRoot] = info.Root
	}
	if info.TLS {
		txt[TXTKeyTLS] = "1"
	}
	if info.PSK {
		txt[TXTKeyAuth] = "psk"
	}
	return txt
}

// DecodeTXT parses TXT records. name and version are required.
func DecodeTXT(txt TXTRecordMap) (*ServerInfo, error) {
	info := &ServerInfo{}
	var ok bool

	if info.Name, ok = txt[TXTKeyName]; !ok || info.Name == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyName)
	}
	if info.Version, ok = txt[TXTKeyVersion]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyVersion)
	}
	info.Root = txt[TXTKeyRoot]
	if info.Root == "" {
		info.Root = "/"
	}

	switch txt[TXTKeyTLS] {
	case "", "0":
	case "1":
		info.TLS = true
	default:
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyTLS, txt[TXTKeyTLS])
	}
	switch txt[TXTKeyAuth] {
	case "":
	case "psk":
		info.PSK = true
	default:
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyAuth, txt[TXTKeyAuth])
	}
	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to sorted "key=value"
// strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, k+"="+v)
	}
	slices.Sort(result)
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, _ := strings.Cut(s, "=")
		if k != "" {
			txt[k] = v
		}
	}
	return txt
}

// InstanceName returns name cut to the DNS label limit.
func InstanceName(name string) string {
	if len(name) > MaxInstanceNameLen {
		return name[:MaxInstanceNameLen]
	}
	return name
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrMissingRequired)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
