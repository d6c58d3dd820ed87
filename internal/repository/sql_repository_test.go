package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuldShah/uptovipnew/internal/database"
	"github.com/YuldShah/uptovipnew/internal/database/dbtest"
	"github.com/YuldShah/uptovipnew/internal/domain"
)

// =============================================================================
// Users
// =============================================================================

func TestSQLUserRepository_AccessStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLUserRepository(dbtest.New(t))

	status, err := repo.GetAccessStatus(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, domain.AccessStatusNormal, status, "unknown users are normal")

	require.NoError(t, repo.SetAccessStatus(ctx, 100, domain.AccessStatusBanned))
	status, err = repo.GetAccessStatus(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, domain.AccessStatusBanned, status)

	require.NoError(t, repo.SetAccessStatus(ctx, 100, domain.AccessStatusWhitelisted))
	status, err = repo.GetAccessStatus(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, domain.AccessStatusWhitelisted, status)
}

func TestSQLUserRepository_QueryError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectQuery("SELECT access_status FROM users").WillReturnError(sqlmock.ErrCancelled)

	repo := NewSQLUserRepository(database.New(conn, database.DriverPostgres))
	_, err = repo.GetAccessStatus(context.Background(), 1)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =============================================================================
// Channels
// =============================================================================

func TestSQLChannelRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLChannelRepository(dbtest.New(t))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, repo.Add(ctx, domain.Channel{ChannelID: -1001, Name: "News", Link: "https://t.me/news", IsActive: true, AddedBy: 1, CreatedAt: time.Now()}))
	require.NoError(t, repo.Add(ctx, domain.Channel{ChannelID: -1002, Name: "Archive", IsActive: false}))

	active, err = repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(-1001), active[0].ChannelID)
	assert.Equal(t, "News", active[0].Name)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, repo.SetActive(ctx, -1002, true))
	active, err = repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	require.NoError(t, repo.Remove(ctx, -1001))
	assert.ErrorIs(t, repo.Remove(ctx, -1001), domain.ErrChannelNotFound)
	assert.ErrorIs(t, repo.SetActive(ctx, -9999, true), domain.ErrChannelNotFound)
}

// =============================================================================
// Preferences
// =============================================================================

func TestSQLPreferenceRepository_Fallbacks(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLPreferenceRepository(dbtest.New(t))

	q, err := repo.GetPreference(ctx, 7, domain.PlatformYouTube)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultQuality, q)

	// Global setting applies to every platform.
	require.NoError(t, repo.Set(ctx, domain.UserSettings{UserID: 7, Quality: domain.QualityLow, Format: domain.FormatDocument}))
	settings, err := repo.Get(ctx, 7, domain.PlatformInstagram)
	require.NoError(t, err)
	assert.Equal(t, domain.QualityLow, settings.Quality)
	assert.Equal(t, domain.FormatDocument, settings.Format)

	// Platform setting wins.
	require.NoError(t, repo.Set(ctx, domain.UserSettings{UserID: 7, Platform: domain.PlatformYouTube, Quality: domain.QualityAudio}))
	q, err = repo.GetPreference(ctx, 7, domain.PlatformYouTube)
	require.NoError(t, err)
	assert.Equal(t, domain.QualityAudio, q)

	q, err = repo.GetPreference(ctx, 7, domain.PlatformGeneric)
	require.NoError(t, err)
	assert.Equal(t, domain.QualityLow, q)
}

func TestSQLPreferenceRepository_RejectsInvalid(t *testing.T) {
	repo := NewSQLPreferenceRepository(dbtest.New(t))

	err := repo.Set(context.Background(), domain.UserSettings{UserID: 1, Quality: "ultra"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	err = repo.Set(context.Background(), domain.UserSettings{UserID: 1, Quality: domain.QualityHigh, Format: "gif"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

// =============================================================================
// Stats
// =============================================================================

func TestSQLStatsRepository_Summary(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLStatsRepository(dbtest.New(t))
	now := time.Now()

	rows := []domain.DownloadStat{
		{UserID: 1, Platform: domain.PlatformYouTube, URL: "a", Success: true, FileSize: 100, DownloadTime: time.Second, CreatedAt: now},
		{UserID: 2, Platform: domain.PlatformYouTube, URL: "b", Success: false, FailureKind: domain.FailureTimeout, CreatedAt: now},
		{UserID: 1, Platform: domain.PlatformDirect, URL: "c", Success: true, FileSize: 50, CreatedAt: now},
		{UserID: 1, Platform: domain.PlatformDirect, URL: "old", Success: true, FileSize: 999, CreatedAt: now.Add(-48 * time.Hour)},
	}
	for _, r := range rows {
		require.NoError(t, repo.Insert(ctx, r))
	}

	summary, err := repo.Summary(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, summary, 2)

	assert.Equal(t, domain.PlatformYouTube, summary[0].Platform)
	assert.Equal(t, int64(2), summary[0].Total)
	assert.Equal(t, int64(1), summary[0].Succeeded)
	assert.Equal(t, int64(100), summary[0].Bytes)

	assert.Equal(t, domain.PlatformDirect, summary[1].Platform)
	assert.Equal(t, int64(1), summary[1].Total)
	assert.Equal(t, int64(50), summary[1].Bytes)
}

func TestSQLStatsRepository_InsertError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectExec("INSERT INTO download_stats").WillReturnError(sqlmock.ErrCancelled)

	repo := NewSQLStatsRepository(database.New(conn, database.DriverPostgres))
	err = repo.Insert(context.Background(), domain.DownloadStat{UserID: 1, URL: "x", CreatedAt: time.Now()})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =============================================================================
// Events
// =============================================================================

func TestSQLEventRepository_QueryAndCleanup(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLEventRepository(dbtest.New(t))
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	events := []domain.Event{
		{ID: "e1", Timestamp: base, Severity: domain.EventSeverityError, Category: domain.EventCategoryAccess, Message: "membership check failed", Source: "access"},
		{ID: "e2", Timestamp: base.Add(time.Minute), Severity: domain.EventSeverityWarning, Category: domain.EventCategoryEngine, Message: "youtube rate limited", Source: "engine", Metadata: domain.EventMetadata{"engine": "youtube"}.ToJSON()},
		{ID: "e3", Timestamp: base.Add(2 * time.Minute), Severity: domain.EventSeverityError, Category: domain.EventCategoryEngine, Message: "upstream failure", Source: "engine"},
	}
	for _, e := range events {
		require.NoError(t, repo.Insert(ctx, e))
	}

	all, err := repo.Query(ctx, domain.EventQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)
	require.Len(t, all.Events, 3)
	assert.Equal(t, domain.EventID("e3"), all.Events[0].ID, "newest first")

	sev := domain.EventSeverityError
	errorsOnly, err := repo.Query(ctx, domain.EventQuery{Filter: domain.EventFilter{Severity: &sev}})
	require.NoError(t, err)
	assert.Equal(t, 2, errorsOnly.Total)

	search, err := repo.Query(ctx, domain.EventQuery{Filter: domain.EventFilter{SearchText: "rate"}})
	require.NoError(t, err)
	require.Len(t, search.Events, 1)
	assert.JSONEq(t, `{"engine":"youtube"}`, string(search.Events[0].Metadata))

	page, err := repo.Query(ctx, domain.EventQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Events, 2)
	assert.True(t, page.HasMore)

	removed, err := repo.DeleteBefore(ctx, base.Add(90*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
}
