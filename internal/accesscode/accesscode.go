// Package accesscode generates and validates identity access codes of the form
// XX-####-#### (two uppercase letters, then two groups of four digits).
package accesscode

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"regexp"
)

const (
	letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits  = "0123456789"
)

var pattern = regexp.MustCompile(`^[A-Z]{2}-[0-9]{4}-[0-9]{4}$`)

// Generator produces random access codes. The zero value reads from crypto/rand.
type Generator struct {
	Rand io.Reader
}

func (g Generator) reader() io.Reader {
	if g.Rand == nil {
		return rand.Reader
	}
	return g.Rand
}

func (g Generator) Next() (string, error) {
	r := g.reader()
	buf := make([]byte, 0, 12)
	for i := 0; i < 2; i++ {
		c, err := pick(r, letters)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	for group := 0; group < 2; group++ {
		buf = append(buf, '-')
		for i := 0; i < 4; i++ {
			c, err := pick(r, digits)
			if err != nil {
				return "", err
			}
			buf = append(buf, c)
		}
	}
	return string(buf), nil
}

func pick(r io.Reader, alphabet string) (byte, error) {
	n, err := rand.Int(r, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, fmt.Errorf("accesscode: read random: %w", err)
	}
	return alphabet[n.Int64()], nil
}

func Valid(code string) bool { return pattern.MatchString(code) }

// NumericCode returns a zero-padded random decimal string of the given length.
func NumericCode(r io.Reader, length int) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, length)
	for i := range buf {
		c, err := pick(r, digits)
		if err != nil {
			return "", err
		}
		buf[i] = c
	}
	return string(buf), nil
}
