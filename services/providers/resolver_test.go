package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"twowatch/models"
)

var errCannotOpen = errors.New("cannot open")

func openRequest(title, pageURL string) models.OpenRequest {
	return models.OpenRequest{LinkQuery: models.LinkQuery{Title: title}, ProviderPageURL: pageURL}
}

func TestOpenUsesProviderLinkFirst(t *testing.T) {
	ctrl := gomock.NewController(t)
	opener := NewMockOpener(ctrl)
	opener.EXPECT().Open(gomock.Any(), "https://www.netflix.com/search?q=Inception").Return(nil).Times(1)

	got := NewResolver(nil, opener).Open(context.Background(), 8, openRequest("Inception", "https://www.themoviedb.org/movie/27205/watch"))

	assert.Equal(t, models.OpenResult{Success: true, OpenedApp: true, URL: "https://www.netflix.com/search?q=Inception"}, got)
}

func TestOpenFallsBackToProviderPage(t *testing.T) {
	ctrl := gomock.NewController(t)
	opener := NewMockOpener(ctrl)
	page := "https://www.themoviedb.org/movie/27205/watch?locale=US"
	gomock.InOrder(
		opener.EXPECT().Open(gomock.Any(), "https://www.disneyplus.com/search/Marvel").Return(errCannotOpen),
		opener.EXPECT().Open(gomock.Any(), page).Return(nil),
	)

	got := NewResolver(nil, opener).Open(context.Background(), 391, openRequest("Marvel", page))

	assert.Equal(t, models.OpenResult{Success: true, OpenedApp: false, URL: page}, got)
}

func TestOpenFallsBackToSearch(t *testing.T) {
	ctrl := gomock.NewController(t)
	opener := NewMockOpener(ctrl)
	gomock.InOrder(
		opener.EXPECT().Open(gomock.Any(), "https://www.hulu.com/search?query=Fargo").Return(errCannotOpen),
		opener.EXPECT().Open(gomock.Any(), "https://tmdb.example/page").Return(errCannotOpen),
		opener.EXPECT().Open(gomock.Any(), "https://www.justwatch.com/us/search?q=Fargo").Return(nil),
	)

	got := NewResolver(nil, opener).Open(context.Background(), 15, openRequest("Fargo", "https://tmdb.example/page"))

	assert.Equal(t, models.OpenResult{Success: true, OpenedApp: false, URL: "https://www.justwatch.com/us/search?q=Fargo"}, got)
}

func TestOpenUnknownProviderSkipsFirstTier(t *testing.T) {
	ctrl := gomock.NewController(t)
	opener := NewMockOpener(ctrl)
	opener.EXPECT().Open(gomock.Any(), "https://www.justwatch.com/us/search?q=x").Return(nil).Times(1)

	got := NewResolver(nil, opener).Open(context.Background(), 99999, openRequest("x", ""))

	assert.Equal(t, models.OpenResult{Success: true, OpenedApp: false, URL: "https://www.justwatch.com/us/search?q=x"}, got)
}

func TestOpenReportsFailureWhenEveryTierFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	opener := NewMockOpener(ctrl)
	opener.EXPECT().Open(gomock.Any(), gomock.Any()).Return(errCannotOpen).Times(3)

	got := NewResolver(nil, opener).Open(context.Background(), 8, openRequest("test", "https://tmdb.example/page"))

	assert.Equal(t, models.OpenResult{}, got)
}

func TestOpenSkipsEmptyProviderPage(t *testing.T) {
	ctrl := gomock.NewController(t)
	opener := NewMockOpener(ctrl)
	gomock.InOrder(
		opener.EXPECT().Open(gomock.Any(), "https://tubitv.com/search/free%20movie").Return(errCannotOpen),
		opener.EXPECT().Open(gomock.Any(), "https://search.example/?q=free%20movie").Return(nil),
	)

	resolver := NewResolver(nil, opener, WithFallbackSearchURL("https://search.example/?q="))
	got := resolver.Open(context.Background(), 359, openRequest("free movie", "   "))

	assert.True(t, got.Success)
	assert.False(t, got.OpenedApp)
}

func TestOpenWithoutTitleOpensProviderHome(t *testing.T) {
	ctrl := gomock.NewController(t)
	opener := NewMockOpener(ctrl)
	opener.EXPECT().Open(gomock.Any(), "https://netflix.com").Return(nil)

	got := NewResolver(nil, opener).Open(context.Background(), 8, models.OpenRequest{})

	assert.Equal(t, models.OpenResult{Success: true, OpenedApp: true, URL: "https://netflix.com"}, got)
}

func TestWithOpenerLeavesOriginalUntouched(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := NewMockOpener(ctrl)
	second := NewMockOpener(ctrl)
	second.EXPECT().Open(gomock.Any(), "https://pluto.tv/search/news").Return(nil)

	base := NewResolver(nil, first)
	got := base.WithOpener(second).Open(context.Background(), 290, openRequest("news", ""))

	assert.True(t, got.OpenedApp)
	assert.Same(t, base.Registry(), base.WithOpener(second).Registry())
}

func TestOpenWithoutOpenerFails(t *testing.T) {
	got := NewResolver(nil, nil).Open(context.Background(), 8, openRequest("Inception", ""))
	assert.False(t, got.Success)
}
