package password

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// alphabet omits characters that are easy to misread on paper.
const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz23456789"

type Generator struct {
	length int
}

func NewGenerator(length int) *Generator {
	return &Generator{length: length}
}

func (g *Generator) Generate() (string, error) {
	if g.length <= 0 {
		return "", fmt.Errorf("password length must be positive")
	}
	limit := big.NewInt(int64(len(alphabet)))
	out := make([]byte, g.length)
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}
