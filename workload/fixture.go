package workload

import (
	"fmt"
	"math"
	mrand "math/rand"
	"strings"
)

// User is a generated fixture user with its posts.
type User struct {
	Name  string
	Email string
	Posts []Post
}

// Post is a generated fixture post.
type Post struct {
	Title string
	Body  string
	Views int
}

// Summary contains statistics about generated fixtures.
type Summary struct {
	Users      int
	Posts      int
	TotalViews int
}

// FixtureConfig controls fixture generation.
type FixtureConfig struct {
	NumUsers     int
	PostsPerUser int
	BodyWords    int
	MaxViews     int
	Distribution string
	Seed         int64
}

// DefaultFixtureConfig seeds one user with 100 searchable posts.
func DefaultFixtureConfig() FixtureConfig {
	return FixtureConfig{
		NumUsers:     1,
		PostsPerUser: 100,
		BodyWords:    20,
		MaxViews:     100000,
		Distribution: "power-law",
		Seed:         1,
	}
}

// Generator produces deterministic fixtures from a FixtureConfig.
type Generator struct {
	cfg FixtureConfig
	rng *mrand.Rand
}

// NewGenerator creates a Generator from the given FixtureConfig.
func NewGenerator(cfg FixtureConfig) *Generator {
	return &Generator{
		cfg: cfg,
		rng: mrand.New(mrand.NewSource(cfg.Seed)),
	}
}

var words = []string{
	"Searchable", "Content", "heft", "index", "throughput", "latency",
	"worker", "queue", "cache", "render", "request", "record",
}

// Generate calls emit for every user in order and returns a Summary.
// Post titles are "Unique Title <n>", numbered across all users.
func (g *Generator) Generate(emit func(User) error) (Summary, error) {
	var summary Summary

	views := g.viewDistribution(g.cfg.NumUsers * g.cfg.PostsPerUser)
	postNum := 0

	for i := 0; i < g.cfg.NumUsers; i++ {
		user := User{
			Name:  fmt.Sprintf("Fixture User %d", i),
			Email: fmt.Sprintf("fixture-%d@example.com", i),
			Posts: make([]Post, 0, g.cfg.PostsPerUser),
		}

		for j := 0; j < g.cfg.PostsPerUser; j++ {
			post := Post{
				Title: fmt.Sprintf("Unique Title %d", postNum),
				Body:  g.randomBody(),
				Views: views[postNum],
			}
			user.Posts = append(user.Posts, post)

			summary.Posts++
			summary.TotalViews += post.Views
			postNum++
		}

		if err := emit(user); err != nil {
			return summary, fmt.Errorf("emit user %d: %w", i, err)
		}

		summary.Users++
	}

	return summary, nil
}

// Posts generates every post, flattened across users.
func (g *Generator) Posts() []Post {
	var posts []Post

	// Generate only fails when emit does.
	_, _ = g.Generate(func(u User) error {
		posts = append(posts, u.Posts...)

		return nil
	})

	return posts
}

func (g *Generator) randomBody() string {
	var b strings.Builder

	b.WriteString("Searchable Content")
	for i := 0; i < g.cfg.BodyWords; i++ {
		b.WriteByte(' ')
		b.WriteString(words[g.rng.Intn(len(words))])
	}

	return b.String()
}

func (g *Generator) viewDistribution(n int) []int {
	dist := make([]int, n)
	maxViews := max(g.cfg.MaxViews, 1)

	switch g.cfg.Distribution {
	case "power-law":
		alpha := 1.5
		for i := range dist {
			u := g.rng.Float64()
			v := 1 / math.Pow(1-u, 1/alpha)
			dist[i] = min(maxViews, int(v))
		}

	case "exponential":
		lambda := math.Log(2) / math.Max(float64(maxViews/4), 1)
		for i := range dist {
			u := g.rng.Float64()
			v := -math.Log(1-u) / lambda
			dist[i] = int(math.Min(v, float64(maxViews)))
		}

	default:
		// uniform, and the fallback for unknown names.
		for i := range dist {
			dist[i] = g.rng.Intn(maxViews + 1)
		}
	}

	return dist
}
