// Package vehicle defines vehicle types, the size hierarchy that decides
// which spot types a vehicle may occupy, and license plate normalisation.
package vehicle

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidType is returned for any vehicle type outside the known set.
var ErrInvalidType = errors.New("vehicle: invalid vehicle type")

// ErrInvalidPlate is returned for an empty or malformed license plate.
var ErrInvalidPlate = errors.New("vehicle: invalid license plate")

// Type is a vehicle class. The same values name spot types: a spot's type is
// the largest vehicle class it can hold.
type Type string

const (
	Motorcycle Type = "MOTORCYCLE"
	Car        Type = "CAR"
	Bus        Type = "BUS"
)

// Types lists every vehicle type in ascending size order.
var Types = []Type{Motorcycle, Car, Bus}

// ParseType parses s case-insensitively. Unknown values are rejected, never coerced.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}

// Valid reports whether t is a known vehicle type.
func (t Type) Valid() bool {
	switch t {
	case Motorcycle, Car, Bus:
		return true
	}
	return false
}

// SizePriority orders types from smallest (1) to largest (3). Zero means unknown.
func (t Type) SizePriority() int {
	switch t {
	case Motorcycle:
		return 1
	case Car:
		return 2
	case Bus:
		return 3
	}
	return 0
}

// EligibleSpotTypes returns the spot types a vehicle of type t may occupy,
// smallest first.
func (t Type) EligibleSpotTypes() []Type {
	p := t.SizePriority()
	if p == 0 {
		return nil
	}
	out := make([]Type, 0, len(Types))
	for _, st := range Types {
		if st.SizePriority() >= p {
			out = append(out, st)
		}
	}
	return out
}

// Fits reports whether a vehicle of type t may park in a spot of type spotType.
func (t Type) Fits(spotType Type) bool {
	p := t.SizePriority()
	return p > 0 && spotType.SizePriority() >= p
}

func (t Type) String() string { return string(t) }

// Vehicle identifies a vehicle by its normalised plate and type.
type Vehicle struct {
	LicensePlate string `json:"license_plate"`
	Type         Type   `json:"vehicle_type"`
}

// New validates and normalises a plate and type into a Vehicle.
func New(plate string, t Type) (Vehicle, error) {
	p, err := NormalizePlate(plate)
	if err != nil {
		return Vehicle{}, err
	}
	if !t.Valid() {
		return Vehicle{}, fmt.Errorf("%w: %q", ErrInvalidType, string(t))
	}
	return Vehicle{LicensePlate: p, Type: t}, nil
}

// MaxPlateLength bounds a normalised plate.
const MaxPlateLength = 16

// NormalizePlate upper-cases a plate and strips spaces and dashes, so
// "ab-123 cd" and "AB123CD" name the same vehicle. Only letters and digits
// may remain.
func NormalizePlate(plate string) (string, error) {
	var b strings.Builder
	for _, r := range strings.ToUpper(plate) {
		switch {
		case r == ' ' || r == '-':
			continue
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidPlate, plate)
		}
	}
	p := b.String()
	if p == "" || len(p) > MaxPlateLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidPlate, plate)
	}
	return p, nil
}
