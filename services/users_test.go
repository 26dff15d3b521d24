package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"jirabulk/models"
)

func TestImportUsersDedupesCaseInsensitively(t *testing.T) {
	incoming := []models.JiraUser{
		{AccountID: " ACC-1 ", DisplayName: " Hong "},
		{AccountID: "acc-1", DisplayName: "Hong again"},
		{AccountID: "acc-2", DisplayName: ""},
		{AccountID: "", DisplayName: "No id"},
		{AccountID: "acc-3", DisplayName: "Kim", EmailAddress: "kim@company.com"},
	}

	merged, dup := ImportUsers(nil, incoming)
	assert.Equal(t, 1, dup)
	assert.Equal(t, []models.JiraUser{
		{AccountID: "ACC-1", DisplayName: "Hong"},
		{AccountID: "acc-3", DisplayName: "Kim", EmailAddress: "kim@company.com"},
	}, merged)
}

func TestImportUsersKeepsExistingFirst(t *testing.T) {
	existing := []models.JiraUser{{AccountID: "acc-1", DisplayName: "Old"}}
	merged, dup := ImportUsers(existing, []models.JiraUser{{AccountID: "ACC-1", DisplayName: "New"}, {AccountID: "acc-2", DisplayName: "Lee"}})
	assert.Equal(t, 1, dup)
	assert.Len(t, merged, 2)
	assert.Equal(t, "Old", merged[0].DisplayName)
}

func TestMergeUsersCountsOnlyAcceptedIncoming(t *testing.T) {
	existing := []models.JiraUser{
		{AccountID: "acc-1", DisplayName: "Hong"},
		{AccountID: "", DisplayName: "broken"},
		{AccountID: "acc-x", DisplayName: "  "},
	}
	merged, added, dup := MergeUsers(existing, []models.JiraUser{{AccountID: "ACC-1", DisplayName: "Again"}})
	assert.Equal(t, 0, added)
	assert.Equal(t, 1, dup)
	assert.Len(t, merged, 1)

	merged, added, dup = MergeUsers(existing, []models.JiraUser{
		{AccountID: "acc-2", DisplayName: "Lee"},
		{AccountID: "acc-3", DisplayName: ""},
	})
	assert.Equal(t, 1, added)
	assert.Equal(t, 0, dup)
	assert.Len(t, merged, 2)
}

func TestParseUsersGrid(t *testing.T) {
	users := ParseUsersGrid("Name\tAccount ID\nHong\tacc-1\nKim\tacc-2\tkim@company.com\n")
	assert.Equal(t, []models.JiraUser{
		{DisplayName: "Hong", AccountID: "acc-1"},
		{DisplayName: "Kim", AccountID: "acc-2", EmailAddress: "kim@company.com"},
	}, users)

	users = ParseUsersGrid("Hong,acc-1")
	assert.Equal(t, []models.JiraUser{{DisplayName: "Hong", AccountID: "acc-1"}}, users)
}
