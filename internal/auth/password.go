// password.go provides bcrypt password hashing for admin accounts.
package auth

import "golang.org/x/crypto/bcrypt"

// BcryptCost is the cost factor for bcrypt hashing.
const BcryptCost = 12

// dummyHash is a valid bcrypt hash of an unguessable value, compared against
// when the account lookup misses so that login timing does not reveal whether
// an email exists.
const dummyHash = "$2a$12$C6UzMDM.H6dfI/f/IKcEeO5sNZvzwAIQEjVX1hOTBeDGMCXbFJFDa"

// HashPassword hashes a plaintext password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
