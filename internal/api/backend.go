// Package api serves the sentiment backend endpoints and the dashboard state
// over HTTP using gin.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rewired-gh/sentimentdash/internal/cache"
	"github.com/rewired-gh/sentimentdash/internal/logger"
	"github.com/rewired-gh/sentimentdash/internal/metrics"
	"github.com/rewired-gh/sentimentdash/internal/models"
	"github.com/rewired-gh/sentimentdash/internal/weighting"
)

// TopLimit is the size of the top users and top tweets rankings.
const TopLimit = 10

// TweetStore is the tweet query surface of *storage.Storage.
type TweetStore interface {
	CountTweets() (int, error)
	ListTweets() ([]models.Tweet, error)
	TweetsBetween(start, end time.Time) ([]models.Tweet, error)
	TweetsSince(since time.Time) ([]models.Tweet, error)
	TweetsByUser(user string) ([]models.Tweet, error)
	SearchTweets(keyword string) ([]models.Tweet, error)
	TopUsersByLikes(limit int) ([]models.UserLikes, error)
	TopTweetsByRetweets(limit int) ([]models.Tweet, error)
}

// BackendOptions configures the backend API. Store is required.
type BackendOptions struct {
	Store           TweetStore
	Cache           cache.Cache // nil disables response caching
	CacheTTL        time.Duration
	Iterations      int
	RateLimitPerMin int
	Metrics         *metrics.Metrics
	Now             func() time.Time
}

// Backend computes time-weighted sentiment over stored tweets.
type Backend struct {
	store      TweetStore
	cache      cache.Cache
	ttl        time.Duration
	iterations int
	rateLimit  int
	metrics    *metrics.Metrics
	now        func() time.Time

	// generation is part of every cache key; bumping it orphans old entries.
	generation atomic.Uint64
}

// NewBackend creates the backend API.
func NewBackend(opts BackendOptions) *Backend {
	b := &Backend{
		store:      opts.Store,
		cache:      opts.Cache,
		ttl:        opts.CacheTTL,
		iterations: opts.Iterations,
		rateLimit:  opts.RateLimitPerMin,
		metrics:    opts.Metrics,
		now:        opts.Now,
	}
	if b.iterations <= 0 {
		b.iterations = weighting.DefaultIterations
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

// Invalidate drops all cached responses. Call it after importing tweets.
func (b *Backend) Invalidate() {
	b.generation.Add(1)
}

// Router returns the gin engine serving every backend route.
func (b *Backend) Router() *gin.Engine {
	r := newEngine(b.metrics, b.rateLimit)

	r.GET("/get_weighted_sentiment_all", b.getAll)
	r.GET("/get_sentiment_today", b.getToday)
	r.GET("/get_sentiment_week", b.getSince(7*24*time.Hour, "No tweets in the past week"))
	r.GET("/get_sentiment_month", b.getSince(30*24*time.Hour, "No tweets in the past month"))
	r.GET("/get_sentiment_range", b.getRange)

	r.GET("/get_sentiment_by_day", b.getGrouped(weighting.ByDay))
	r.GET("/get_sentiment_by_week", b.getGrouped(weighting.ByWeek))
	r.GET("/get_sentiment_by_month", b.getGrouped(weighting.ByMonth))
	r.GET("/get_sentiment_by_hour", b.getGrouped(weighting.ByHour))
	r.GET("/get_sentiment_by_5min", b.getGrouped(weighting.ByFiveMin))
	r.GET("/get_sentiment_iterations", b.getIterations)

	r.GET("/get_tweets_by_user", b.getTweetsByUser)
	r.GET("/search_tweets", b.searchTweets)
	r.GET("/get_top_users_by_likes", b.getTopUsers)
	r.GET("/get_top_tweets_by_retweets", b.getTopTweets)

	return r
}

// requireTweets writes 404 when the store is empty and reports whether the
// handler should continue.
func (b *Backend) requireTweets(c *gin.Context) bool {
	n, err := b.store.CountTweets()
	if err != nil {
		storeError(c, err)
		return false
	}
	if n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No tweets available"})
		return false
	}
	return true
}

func (b *Backend) getAll(c *gin.Context) {
	if !b.requireTweets(c) {
		return
	}
	b.cached(c, "all", func() (any, error) {
		tweets, err := b.store.ListTweets()
		if err != nil {
			return nil, err
		}
		return weighting.Compute(tweets).Wire(), nil
	})
}

func (b *Backend) getToday(c *gin.Context) {
	if !b.requireTweets(c) {
		return
	}
	midnight := b.now().UTC().Truncate(24 * time.Hour)
	tweets, err := b.store.TweetsBetween(midnight, midnight.Add(24*time.Hour-time.Nanosecond))
	if err != nil {
		storeError(c, err)
		return
	}
	writeSummary(c, tweets, "No tweets for today")
}

func (b *Backend) getSince(window time.Duration, emptyMsg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !b.requireTweets(c) {
			return
		}
		tweets, err := b.store.TweetsSince(b.now().UTC().Add(-window))
		if err != nil {
			storeError(c, err)
			return
		}
		writeSummary(c, tweets, emptyMsg)
	}
}

func (b *Backend) getRange(c *gin.Context) {
	if !b.requireTweets(c) {
		return
	}
	startStr, endStr := c.Query("start"), c.Query("end")
	if startStr == "" || endStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please provide both 'start' and 'end' date parameters"})
		return
	}
	start, err1 := models.ParseBucketKey(startStr)
	end, err2 := models.ParseBucketKey(endStr)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error parsing 'start' or 'end' date"})
		return
	}

	tweets, err := b.store.TweetsBetween(start, end)
	if err != nil {
		storeError(c, err)
		return
	}
	writeSummary(c, tweets, "No tweets in the specified date range")
}

func (b *Backend) getGrouped(g weighting.Granularity) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !b.requireTweets(c) {
			return
		}
		b.cached(c, "by:"+string(g), func() (any, error) {
			tweets, err := b.store.ListTweets()
			if err != nil {
				return nil, err
			}
			return weighting.Group(g, tweets), nil
		})
	}
}

func (b *Backend) getIterations(c *gin.Context) {
	if !b.requireTweets(c) {
		return
	}
	raw := c.Query("timestamp")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please provide a 'timestamp' parameter in ISO format."})
		return
	}
	target, err := models.ParseBucketKey(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error parsing provided timestamp."})
		return
	}

	key := "iterations:" + weighting.BucketKey(weighting.ByFiveMin, target)
	b.cached(c, key, func() (any, error) {
		tweets, err := b.store.ListTweets()
		if err != nil {
			return nil, err
		}
		return weighting.Iterations(tweets, target, b.iterations), nil
	})
}

func (b *Backend) getTweetsByUser(c *gin.Context) {
	user := c.Query("user")
	if user == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please provide a 'user' parameter"})
		return
	}
	if !b.requireTweets(c) {
		return
	}
	tweets, err := b.store.TweetsByUser(user)
	if err != nil {
		storeError(c, err)
		return
	}
	if len(tweets) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": fmt.Sprintf("No tweets found for user '%s'", user)})
		return
	}
	c.JSON(http.StatusOK, tweets)
}

func (b *Backend) searchTweets(c *gin.Context) {
	keyword := c.Query("keyword")
	if keyword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please provide a 'keyword' parameter"})
		return
	}
	if !b.requireTweets(c) {
		return
	}
	tweets, err := b.store.SearchTweets(keyword)
	if err != nil {
		storeError(c, err)
		return
	}
	if len(tweets) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": fmt.Sprintf("No tweets found containing '%s'", keyword)})
		return
	}
	c.JSON(http.StatusOK, tweets)
}

func (b *Backend) getTopUsers(c *gin.Context) {
	if !b.requireTweets(c) {
		return
	}
	users, err := b.store.TopUsersByLikes(TopLimit)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (b *Backend) getTopTweets(c *gin.Context) {
	if !b.requireTweets(c) {
		return
	}
	tweets, err := b.store.TopTweetsByRetweets(TopLimit)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tweets)
}

// cached serves the JSON encoding of compute(), reusing a cached copy for
// the same key and tweet generation.
func (b *Backend) cached(c *gin.Context, key string, compute func() (any, error)) {
	key = fmt.Sprintf("%s:%d", key, b.generation.Load())
	ctx := c.Request.Context()

	if b.cache != nil {
		if data, ok := b.cache.Get(ctx, key); ok {
			c.Data(http.StatusOK, "application/json; charset=utf-8", data)
			return
		}
	}

	v, err := compute()
	if err != nil {
		storeError(c, err)
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error("Failed to encode %s response: %v", key, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Encoding error"})
		return
	}

	if b.cache != nil {
		setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		if err := b.cache.Set(setCtx, key, data, b.ttl); err != nil {
			logger.Warn("Failed to cache %s: %v", key, err)
		}
		cancel()
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func writeSummary(c *gin.Context, tweets []models.Tweet, emptyMsg string) {
	s := weighting.Compute(tweets)
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": emptyMsg})
		return
	}
	c.JSON(http.StatusOK, s.Wire())
}

func storeError(c *gin.Context, err error) {
	logger.Error("Tweet store query failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
}
