package identity

import "golang.org/x/crypto/bcrypt"

// HashPassword and VerifyPassword are the Go equivalent of the original
// system's passlib CryptContext(schemes=["bcrypt"]) — same algorithm,
// same default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
