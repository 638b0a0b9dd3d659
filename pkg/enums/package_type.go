package enums

import "fmt"

// PackageType classifies the physical parcel recorded at intake.
type PackageType string

const (
	PackageTypeBox        PackageType = "box"
	PackageTypeEnvelope   PackageType = "envelope"
	PackageTypeBag        PackageType = "bag"
	PackageTypePerishable PackageType = "perishable"
	PackageTypeOther      PackageType = "other"
)

var validPackageTypes = []PackageType{
	PackageTypeBox,
	PackageTypeEnvelope,
	PackageTypeBag,
	PackageTypePerishable,
	PackageTypeOther,
}

// IsValid reports whether the value matches the canonical package type enum.
func (p PackageType) IsValid() bool {
	for _, candidate := range validPackageTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePackageType converts the raw string to PackageType.
func ParsePackageType(value string) (PackageType, error) {
	for _, candidate := range validPackageTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid package type %q", value)
}
