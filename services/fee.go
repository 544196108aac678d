package services

import "strings"

// Registration fees in whole rupees.
const (
	FemaleFee  int64 = 250
	DefaultFee int64 = 350
)

// FeeForCategory returns the registration fee for a declared gender/category.
func FeeForCategory(category string) int64 {
	if strings.EqualFold(strings.TrimSpace(category), "female") {
		return FemaleFee
	}
	return DefaultFee
}

// ResolveFee prefers the stored fee when positive and falls back to the category fee.
func ResolveFee(stored *int64, category string) int64 {
	if stored != nil && *stored > 0 {
		return *stored
	}
	return FeeForCategory(category)
}

// ToMinorUnits converts whole rupees to paise.
func ToMinorUnits(whole int64) int64 {
	return whole * 100
}
