package websites_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagetally/internal/testsupport"
	"pagetally/internal/websites"
)

func TestGetWebsiteByDomain(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	created := testsupport.CreateTestWebsite(t, db, "Example.com")

	t.Run("Exact hostname match", func(t *testing.T) {
		website, err := websites.GetWebsiteByDomain(db, "example.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, website.ID)
		assert.Equal(t, "example.com", website.Domain)
	})

	t.Run("No match for non-existent domain", func(t *testing.T) {
		website, err := websites.GetWebsiteByDomain(db, "unknown-domain.com")
		assert.Nil(t, website)

		var notFound *websites.WebsiteNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "unknown-domain.com", notFound.Domain)
	})
}

func TestCreateWebsite(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	_, err := websites.CreateWebsite(db, "example.com")
	require.NoError(t, err)

	_, err = websites.CreateWebsite(db, "example.com")
	assert.Error(t, err, "domains are unique")

	_, err = websites.CreateWebsite(db, "example.com/path")
	assert.Error(t, err)

	_, err = websites.CreateWebsite(db, "  ")
	assert.Error(t, err)
}

func TestListOrigins(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CreateTestWebsite(t, db, "b.example")
	testsupport.CreateTestWebsite(t, db, "a.example")

	origins, err := websites.ListOrigins(db)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.example", "b.example"}, origins)
}

func TestRegistry(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CreateTestWebsite(t, db, "example.com")
	registry := websites.NewRegistry(db, testsupport.GetLogger())

	ok, err := registry.IsRegistered(t.Context(), "EXAMPLE.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = registry.IsRegistered(t.Context(), "other.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveViewer(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	shared := testsupport.CreateTestWebsite(t, db, "shared.example")
	testsupport.CreateTestWebsite(t, db, "private.example")

	token, err := websites.EnableSharing(db, shared.ID)
	require.NoError(t, err)
	require.Len(t, token, 24)

	t.Run("admin key sees everything", func(t *testing.T) {
		viewer, err := websites.ResolveViewer(db, "admin-key", "admin-key")
		require.NoError(t, err)
		assert.True(t, viewer.CanView("private.example"))
		assert.Equal(t, []string{"a", "b"}, viewer.Visible([]string{"a", "b"}))
	})

	t.Run("share token sees its origin", func(t *testing.T) {
		viewer, err := websites.ResolveViewer(db, token, "admin-key")
		require.NoError(t, err)
		assert.True(t, viewer.CanView("shared.example"))
		assert.False(t, viewer.CanView("private.example"))
		assert.Equal(t, []string{"shared.example"},
			viewer.Visible([]string{"private.example", "shared.example"}))
	})

	t.Run("unknown or missing token sees nothing", func(t *testing.T) {
		_, err := websites.ResolveViewer(db, "nope", "admin-key")
		assert.ErrorIs(t, err, websites.ErrNoOrigins)

		_, err = websites.ResolveViewer(db, "", "")
		assert.ErrorIs(t, err, websites.ErrNoOrigins)
	})

	t.Run("disabled sharing revokes the token", func(t *testing.T) {
		require.NoError(t, websites.DisableSharing(db, shared.ID))
		_, err := websites.ResolveViewer(db, token, "admin-key")
		assert.ErrorIs(t, err, websites.ErrNoOrigins)
	})
}
