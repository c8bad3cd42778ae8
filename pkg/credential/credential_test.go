package credential

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHashAndCompare(t *testing.T) {
	v := NewBcrypt(bcrypt.MinCost)

	hash, err := v.Hash("secret")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "secret" || strings.Contains(hash, "secret") {
		t.Errorf("hash %q contains the plaintext", hash)
	}
	if !v.Compare("secret", hash) {
		t.Error("Compare(correct) = false, want true")
	}
	if v.Compare("secret2", hash) {
		t.Error("Compare(wrong) = true, want false")
	}
	if v.Compare("", hash) {
		t.Error("Compare(empty) = true, want false")
	}
}

func TestBcryptSaltsEachHash(t *testing.T) {
	v := NewBcrypt(bcrypt.MinCost)

	a, err := v.Hash("secret")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := v.Hash("secret")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a == b {
		t.Error("two hashes of the same password are identical")
	}
	if !v.Compare("secret", a) || !v.Compare("secret", b) {
		t.Error("both hashes should verify")
	}
}

func TestBcryptCost(t *testing.T) {
	tests := []struct {
		name string
		cost int
		want int
	}{
		{"default", DefaultCost, DefaultCost},
		{"too low", 1, DefaultCost},
		{"too high", 99, DefaultCost},
		{"min", bcrypt.MinCost, bcrypt.MinCost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewBcrypt(tt.cost)
			hash, err := v.Hash("pw")
			if err != nil {
				t.Fatalf("Hash: %v", err)
			}
			got, err := bcrypt.Cost([]byte(hash))
			if err != nil {
				t.Fatalf("Cost: %v", err)
			}
			if got != tt.want {
				t.Errorf("cost = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBcryptCompareMalformedHash(t *testing.T) {
	v := NewBcrypt(bcrypt.MinCost)
	if v.Compare("secret", "not-a-bcrypt-hash") {
		t.Error("Compare(malformed hash) = true, want false")
	}
}

func TestBcryptHashTooLong(t *testing.T) {
	v := NewBcrypt(bcrypt.MinCost)
	if _, err := v.Hash(strings.Repeat("x", 100)); err == nil {
		t.Error("Hash(100 bytes) error = nil, want error")
	}
}
