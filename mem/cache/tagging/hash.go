package tagging

import "fmt"

// AddressHash selects how a line tag is mapped to a set.
type AddressHash int

// Supported address hashes.
const (
	HashMask AddressHash = iota
	HashMod
)

// ParseAddressHash converts a configuration string into an AddressHash.
func ParseAddressHash(s string) (AddressHash, error) {
	switch s {
	case "", "mask":
		return HashMask, nil
	case "mod":
		return HashMod, nil
	default:
		return 0, fmt.Errorf("unknown address hash %q", s)
	}
}

func (h AddressHash) String() string {
	switch h {
	case HashMask:
		return "mask"
	case HashMod:
		return "mod"
	default:
		return "unknown"
	}
}

func (h AddressHash) setIndex(tag uint64, numSets int) int {
	switch h {
	case HashMask:
		return int(tag & uint64(numSets-1))
	case HashMod:
		return int(tag % uint64(numSets))
	default:
		panic("unknown address hash")
	}
}
