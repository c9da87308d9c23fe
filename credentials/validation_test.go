package credentials_test

import (
	"testing"

	"github.com/jrsteele09/campus-market/credentials"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	t.Run("valid addresses", func(t *testing.T) {
		require.True(t, credentials.ValidateEmail("a@b.co"))
		require.True(t, credentials.ValidateEmail("student.name@campus.edu"))
		require.True(t, credentials.ValidateEmail("x+tag@mail.uni.ac.uk"))
	})

	t.Run("missing tld", func(t *testing.T) {
		require.False(t, credentials.ValidateEmail("a@b"))
	})

	t.Run("contains whitespace", func(t *testing.T) {
		require.False(t, credentials.ValidateEmail("a b@c.de"))
		require.False(t, credentials.ValidateEmail(" a@b.co"))
	})

	t.Run("double at", func(t *testing.T) {
		require.False(t, credentials.ValidateEmail("a@@b.co"))
		require.False(t, credentials.ValidateEmail("a@b@c.co"))
	})

	t.Run("empty", func(t *testing.T) {
		require.False(t, credentials.ValidateEmail(""))
	})
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		valid    bool
		message  string
	}{
		{"too short wins over everything", "abc", false, credentials.PasswordTooShortMsg},
		{"seven characters", "Abcdef1", false, credentials.PasswordTooShortMsg},
		{"missing uppercase", "abcdefg1", false, credentials.PasswordNoUpperMsg},
		{"missing upper and digit reports upper first", "abcdefgh", false, credentials.PasswordNoUpperMsg},
		{"missing lowercase", "ABCDEFG1", false, credentials.PasswordNoLowerMsg},
		{"missing digit", "Abcdefgh", false, credentials.PasswordNoNumberMsg},
		{"valid", "Abcdefg1", true, ""},
		{"valid with symbols", "C@mpus-Market-2024", true, ""},
		{"seven multi-byte characters", "Ééééé1a", false, credentials.PasswordTooShortMsg},
		{"eight multi-byte characters", "Éééééé1a", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := credentials.ValidatePassword(tt.password)
			require.Equal(t, tt.valid, result.Valid)
			require.Equal(t, tt.message, result.Message)
		})
	}
}

func TestValidateFullName(t *testing.T) {
	require.False(t, credentials.ValidateFullName(""))
	require.False(t, credentials.ValidateFullName(" a "))
	require.True(t, credentials.ValidateFullName("Al"))
	require.True(t, credentials.ValidateFullName("Jo Bloggs"))
}
