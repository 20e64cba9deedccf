package user_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvaesteves/user-service/internal/user"
)

func TestUser_Profile(t *testing.T) {
	id := uuid.Must(uuid.FromString("5b6a1a8e-4f3c-4c1e-9d7a-0b8f2c3d4e5f"))
	created := time.Date(2025, 4, 16, 12, 0, 0, 123456000, time.UTC)

	u := &user.User{
		ID:           id,
		Name:         "Alberto Roberto",
		Email:        "alberto@roberto.com",
		PasswordHash: "hash",
		Token:        "TESTTOKEN",
		Phones: []user.Phone{
			{DDD: "21", Number: "26134141", Position: 0},
			{DDD: "11", Number: "987654321", Position: 1},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}

	want := user.Profile{
		ID:    "5b6a1a8e-4f3c-4c1e-9d7a-0b8f2c3d4e5f",
		Name:  "Alberto Roberto",
		Email: "alberto@roberto.com",
		Phones: []user.PhoneView{
			{DDD: "21", Number: "26134141"},
			{DDD: "11", Number: "987654321"},
		},
		Created:  created,
		Modified: created,
		Token:    "TESTTOKEN",
	}

	if diff := cmp.Diff(want, u.Profile()); diff != "" {
		t.Errorf("profile mismatch (-want +got):\n%s", diff)
	}
}

func TestUser_Profile_JSONShape(t *testing.T) {
	u := &user.User{
		ID:        uuid.Must(uuid.NewV4()),
		Name:      "João da Silva",
		Email:     "joao@silva.org",
		Token:     "TESTTOKEN",
		CreatedAt: time.Date(2025, 4, 16, 12, 0, 0, 123456000, time.UTC),
		UpdatedAt: time.Date(2025, 4, 16, 12, 0, 0, 123456000, time.UTC),
	}

	body, err := json.Marshal(u.Profile())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))

	assert.Len(t, decoded, 8)
	assert.Equal(t, u.ID.String(), decoded["id"])
	assert.Nil(t, decoded["phones"], "a user without phones renders phones as null")
	assert.Nil(t, decoded["last_login"], "never authenticated renders last_login as null")
	assert.Equal(t, "2025-04-16T12:00:00.123456Z", decoded["created"])
	assert.Equal(t, "2025-04-16T12:00:00.123456Z", decoded["modified"])
	assert.NotContains(t, decoded, "password")
	assert.NotContains(t, decoded, "password_hash")

	lastLogin := u.CreatedAt.Add(time.Minute)
	u.LastLogin = &lastLogin
	body, err = json.Marshal(u.Profile())
	require.NoError(t, err)

	var roundTrip user.Profile
	require.NoError(t, json.Unmarshal(body, &roundTrip))
	if diff := cmp.Diff(u.Profile(), roundTrip); diff != "" {
		t.Errorf("projection lost data through JSON (-want +got):\n%s", diff)
	}
}
