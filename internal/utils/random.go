package utils

import (
	"crypto/rand"
	"math/big"
)

const (
	letterBytes  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	numberBytes  = "0123456789"
	alphanumeric = letterBytes + numberBytes
)

func GenerateRandomString(length int) string {
	return generateRandom(length, alphanumeric)
}

func GenerateRandomNumericString(length int) string {
	return generateRandom(length, numberBytes)
}

func generateRandom(length int, charset string) string {
	result := make([]byte, length)
	charsetLength := big.NewInt(int64(len(charset)))

	for i := range result {
		num, err := rand.Int(rand.Reader, charsetLength)
		if err != nil {
			panic("crypto/rand unavailable: " + err.Error())
		}
		result[i] = charset[num.Int64()]
	}

	return string(result)
}

// GenerateTripToken returns the opaque routing key handed out in tracking
// links.
func GenerateTripToken() string {
	return GenerateRandomString(TripTokenLength)
}

func GenerateOTP(length int) string {
	if length <= 0 {
		length = OTPLength
	}
	return GenerateRandomNumericString(length)
}
