package scraper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoveltyFilterKeepsOrderAndDropsKnown(t *testing.T) {
	t.Parallel()

	store := newStubStore(
		"https://example.test/course/known-a/",
		"https://example.test/course/known-b/",
	)
	filter := NewNoveltyFilter(store, nil)

	candidates := []CourseLink{
		{URL: "https://example.test/course/new-1/"},
		{URL: "https://example.test/course/known-a/"},
		{URL: "https://example.test/course/new-2/"},
		{URL: "https://example.test/course/known-b/"},
		{URL: "https://example.test/course/new-3/"},
	}

	outcome, err := filter.Filter(context.Background(), candidates)
	require.NoError(t, err)

	require.Len(t, outcome.Novel, 3)
	assert.Equal(t, "https://example.test/course/new-1/", outcome.Novel[0].URL)
	assert.Equal(t, "https://example.test/course/new-2/", outcome.Novel[1].URL)
	assert.Equal(t, "https://example.test/course/new-3/", outcome.Novel[2].URL)
	assert.Equal(t, 5, outcome.Checked)
	assert.Equal(t, 2, outcome.Known)
	assert.False(t, outcome.Done())
}

func TestNoveltyFilterAllKnownIsDone(t *testing.T) {
	t.Parallel()

	store := newStubStore("https://example.test/course/a/")
	filter := NewNoveltyFilter(store, nil)

	outcome, err := filter.Filter(context.Background(), []CourseLink{
		{URL: "https://example.test/course/a/"},
	})
	require.NoError(t, err)
	assert.True(t, outcome.Done())
	assert.Equal(t, 1, outcome.Known)
}

func TestNoveltyFilterIsCaseSensitive(t *testing.T) {
	t.Parallel()

	store := newStubStore("https://example.test/course/python/")
	filter := NewNoveltyFilter(store, nil)

	outcome, err := filter.Filter(context.Background(), []CourseLink{
		{URL: "https://example.test/course/Python/"},
	})
	require.NoError(t, err)
	assert.Len(t, outcome.Novel, 1, "case variant must count as novel")
}

func TestNoveltyFilterPropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.queryErr = errors.New("connection refused")
	filter := NewNoveltyFilter(store, nil)

	_, err := filter.Filter(context.Background(), []CourseLink{
		{URL: "https://example.test/course/a/"},
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "connection refused")
}

func TestNoveltyFilterEmptyInputIsDone(t *testing.T) {
	t.Parallel()

	filter := NewNoveltyFilter(newStubStore(), nil)
	outcome, err := filter.Filter(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, outcome.Done())
	assert.Zero(t, outcome.Checked)
}
