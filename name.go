package upscale

import (
	"fmt"
	"strings"
)

// Name identifies an algorithm family. Two descriptors with the same Name
// compete for one registry slot; NameNone never competes.
//
// The numeric values are stable and may be persisted in configuration.
type Name int

const (
	NameNone      Name = 0
	NameFSR1      Name = 11000
	NameFSR2      Name = 12000
	NameFSR3      Name = 13000
	NameFSR4      Name = 14000
	NameASR       Name = 21000
	NameDLSS3     Name = 33000
	NameDLSS4     Name = 34000
	NameXeSS1     Name = 41000
	NameXeSS2     Name = 42000
	NameSGSR1     Name = 51000
	NameSGSR2     Name = 52000
	NameReserved1 Name = 61000
	NameReserved2 Name = 71000
	NameReserved3 Name = 81000
	NamePSSR      Name = 91000
)

var nameStrings = map[Name]string{
	NameNone:      "None",
	NameFSR1:      "FSR1",
	NameFSR2:      "FSR2",
	NameFSR3:      "FSR3",
	NameFSR4:      "FSR4",
	NameASR:       "ASR",
	NameDLSS3:     "DLSS3",
	NameDLSS4:     "DLSS4",
	NameXeSS1:     "XeSS1",
	NameXeSS2:     "XeSS2",
	NameSGSR1:     "SGSR1",
	NameSGSR2:     "SGSR2",
	NameReserved1: "Reserved1",
	NameReserved2: "Reserved2",
	NameReserved3: "Reserved3",
	NamePSSR:      "PSSR",
}

// String returns the algorithm family name.
func (n Name) String() string {
	if s, ok := nameStrings[n]; ok {
		return s
	}
	return fmt.Sprintf("Name(%d)", int(n))
}

// ParseName parses a family name case-insensitively.
func ParseName(s string) (Name, error) {
	for n, str := range nameStrings {
		if strings.EqualFold(str, s) {
			return n, nil
		}
	}
	return NameNone, fmt.Errorf("upscale: unknown algorithm name %q", s)
}
