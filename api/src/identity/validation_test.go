package identity

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCI(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1234567", "1234567", true},
		{" 12345678 ", "12345678", true},
		{"1234567-1K", "1234567", true},
		{"1234567 1k", "1234567", true},
		{"12345", "12345", true},
		{"1234567890", "1234567890", true},
		{"1234", "", false},
		{"12345678901", "", false},
		{"12A4567", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := NormalizeCI(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDepartmentsAndOwnerKey(t *testing.T) {
	code, ok := NormalizeDepartment(" lp ")
	assert.True(t, ok)
	assert.Equal(t, "LP", code)
	_, ok = NormalizeDepartment("XX")
	assert.False(t, ok)

	assert.True(t, IsOwnerKey("0x00000000000000000000000000000000000000aB"))
	assert.False(t, IsOwnerKey("0x123"))
	assert.False(t, IsOwnerKey("00000000000000000000000000000000000000ab00"))
}

func TestIsAdult(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	assert.True(t, IsAdult("2008-06-15", now), "eighteenth birthday counts")
	assert.False(t, IsAdult("2008-06-16", now))
	assert.True(t, IsAdult("1980-01-01", now))
	assert.False(t, IsAdult("1899-12-31", now))
	assert.False(t, IsAdult("15/06/1990", now))
}

func TestVerifyFormRules(t *testing.T) {
	v := validator.New()
	v.SetTagName("binding")
	require.NoError(t, RegisterValidations(v))

	adult := time.Now().AddDate(-30, 0, 0).Format(dateLayout)
	form := VerifyForm{
		DocumentNumber: "1234567",
		Expedition:     "CB",
		FirstName:      "Ana",
		LastName:       "Quispe",
		DateOfBirth:    adult,
		OwnerKey:       "0x1111111111111111111111111111111111111111",
	}
	// the file header is checked by gin's multipart binding, not here
	err := v.StructExcept(form, "DocumentImage")
	assert.NoError(t, err)

	form.Expedition = "ZZ"
	form.DateOfBirth = time.Now().AddDate(-10, 0, 0).Format(dateLayout)
	err = v.StructExcept(form, "DocumentImage")
	require.Error(t, err)

	failed := map[string]string{}
	for _, fe := range err.(validator.ValidationErrors) {
		failed[fe.Field()] = fe.Tag()
	}
	assert.Equal(t, "bo_department", failed["Expedition"])
	assert.Equal(t, "adult_dob", failed["DateOfBirth"])
}
