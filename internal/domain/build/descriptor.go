package build

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// errPrinterTypeRequired is returned when the printer type is empty.
	errPrinterTypeRequired = errors.New("printer_type must be provided")
	// errSubTypeRequired is returned when the printer sub-type is empty.
	errSubTypeRequired = errors.New("sub_type must be provided")
	// errMakeRequired is returned when the printer make is empty.
	errMakeRequired = errors.New("make must be provided")
	// errBuildNumberRequired is returned when the build number is not positive.
	errBuildNumberRequired = errors.New("build_number must be positive")
)

// Descriptor identifies the build a printer requests from the server.
// Field names on the wire match the server's download contract.
type Descriptor struct {
	// PrinterType is the printer family, for example "Prime".
	PrinterType string `json:"printer_type" yaml:"printer_type"`
	// SubType is the printer variant within the family, for example "5K".
	SubType string `json:"sub_type" yaml:"sub_type"`
	// Make is the hardware revision, for example "MK2".
	Make string `json:"make" yaml:"make"`
	// BuildNumber is the published build version to fetch.
	BuildNumber int `json:"build_number" yaml:"build_number"`
}

// Validate checks that every attribute the server requires is present.
func (d Descriptor) Validate() error {
	switch {
	case strings.TrimSpace(d.PrinterType) == "":
		return errPrinterTypeRequired
	case strings.TrimSpace(d.SubType) == "":
		return errSubTypeRequired
	case strings.TrimSpace(d.Make) == "":
		return errMakeRequired
	case d.BuildNumber <= 0:
		return errBuildNumberRequired
	}

	return nil
}

// Merge returns a copy of d with every non-zero field of override applied.
func (d Descriptor) Merge(override Descriptor) Descriptor {
	if override.PrinterType != "" {
		d.PrinterType = override.PrinterType
	}

	if override.SubType != "" {
		d.SubType = override.SubType
	}

	if override.Make != "" {
		d.Make = override.Make
	}

	if override.BuildNumber != 0 {
		d.BuildNumber = override.BuildNumber
	}

	return d
}

// String renders the descriptor as "type/sub-type/make#number" for logs.
func (d Descriptor) String() string {
	return fmt.Sprintf("%s/%s/%s#%d", d.PrinterType, d.SubType, d.Make, d.BuildNumber)
}
