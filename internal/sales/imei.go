package sales

import (
	pkgerrors "github.com/movilpay/vendorpay-backend/pkg/errors"
)

// ValidateIMEI checks the 15-digit format and the Luhn check digit.
func ValidateIMEI(imei string) error {
	if len(imei) != 15 {
		return pkgerrors.New(pkgerrors.CodeValidation, "imei must be exactly 15 digits")
	}
	sum := 0
	for i, r := range imei {
		if r < '0' || r > '9' {
			return pkgerrors.New(pkgerrors.CodeValidation, "imei must contain only digits")
		}
		digit := int(r - '0')
		// Double every second digit counting from the right.
		if (len(imei)-i)%2 == 0 {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
	}
	if sum%10 != 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "imei checksum is invalid")
	}
	return nil
}
