package services

import (
	"context"
	"time"

	"github.com/codesnap/codesnap/models"
)

type examplePaste struct {
	title    string
	language string
	author   string
	tags     []string
	views    int64
	lifetime time.Duration // zero keeps the paste forever
	content  string
}

var examplePastes = []examplePaste{
	{
		title:    "Python DataFrame Basics",
		language: "python",
		author:   "DataAnalyst",
		tags:     []string{"python", "pandas", "data-analysis"},
		lifetime: 30 * 24 * time.Hour,
		content: `import pandas as pd

df = pd.DataFrame({
    "name": ["Ada", "Grace", "Linus"],
    "age": [36, 45, 29],
})

print(df.describe())
print(df[df["age"] > 30])
`,
	},
	{
		title:    "JavaScript Array Methods",
		language: "javascript",
		author:   "JSdev",
		tags:     []string{"javascript", "arrays", "functions"},
		lifetime: 30 * 24 * time.Hour,
		content: `const numbers = [1, 2, 3, 4, 5, 6];

const doubled = numbers.map((n) => n * 2);
const evens = numbers.filter((n) => n % 2 === 0);
const sum = numbers.reduce((total, n) => total + n, 0);

console.log({ doubled, evens, sum });
`,
	},
	{
		title:    "Minimal Go HTTP Server",
		language: "go",
		author:   "Gopher",
		tags:     []string{"go", "http"},
		lifetime: 30 * 24 * time.Hour,
		content: `package main

import (
	"fmt"
	"net/http"
)

func main() {
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "hello")
	})
	_ = http.ListenAndServe(":8080", nil)
}
`,
	},
	{
		title:    "Transport Data Analysis",
		language: "python",
		author:   "CityPlanner",
		tags:     []string{"python", "pandas", "transport"},
		views:    147,
		content: `import pandas as pd

trips = pd.read_csv("trips.csv", parse_dates=["start"])
trips["hour"] = trips["start"].dt.hour

busiest = trips.groupby("hour").size().sort_values(ascending=False)
print(busiest.head(5))
`,
	},
	{
		title:    "Top Customers by Revenue",
		language: "sql",
		author:   "DBA",
		tags:     []string{"sql", "reporting"},
		lifetime: 30 * 24 * time.Hour,
		content: `SELECT c.name, SUM(o.total) AS revenue
FROM customers c
JOIN orders o ON o.customer_id = c.id
GROUP BY c.name
ORDER BY revenue DESC
LIMIT 10;
`,
	},
}

// Seed inserts the example pastes when the store holds no live pastes.
// It returns the number of pastes inserted.
func (s *PasteService) Seed(ctx context.Context) (int, error) {
	existing, err := s.store.ListRecent(ctx, 1)
	if err != nil {
		return 0, persistenceError("Error checking existing pastes", err)
	}
	if len(existing) > 0 {
		s.logger.Info("Store already has pastes, skipping seed")
		return 0, nil
	}

	now := s.now().UTC()
	inserted := 0
	for _, ex := range examplePastes {
		id, err := s.newID()
		if err != nil {
			return inserted, persistenceError("Error seeding pastes", err)
		}

		paste := &models.Paste{
			PasteID:    id,
			Title:      ex.title,
			Content:    ex.content,
			Language:   ex.language,
			AuthorName: ex.author,
			Tags:       append([]string(nil), ex.tags...),
			Views:      ex.views,
			CreatedAt:  now,
		}
		if ex.lifetime > 0 {
			expiresAt := now.Add(ex.lifetime)
			paste.ExpiresAt = &expiresAt
		}

		if _, err := s.store.Create(ctx, paste); err != nil {
			s.logger.Error("Failed to seed paste", "op", "seed", "title", ex.title, "error", err)
			return inserted, persistenceError("Error seeding pastes", err)
		}
		inserted++
	}

	s.logger.Info("Seeded example pastes", "count", inserted)
	return inserted, nil
}
