package main

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const shopSchema = `
CREATE TABLE category (category_id INTEGER PRIMARY KEY, name TEXT);
CREATE TABLE product (
  product_id INTEGER PRIMARY KEY, name TEXT NOT NULL, description TEXT,
  category_id INTEGER, price REAL, status TEXT, moderation_status TEXT
);
CREATE TABLE orders (
  orders_id INTEGER PRIMARY KEY, customer_id INTEGER, product_id INTEGER,
  quantity INTEGER, status TEXT, payment_status TEXT, created_at TEXT
);
CREATE TABLE rating (rating_id INTEGER PRIMARY KEY, orders_id INTEGER, rating REAL);
CREATE TABLE user_searches (customer_id INTEGER, search_term TEXT, category_id INTEGER, created_at TEXT);
CREATE TABLE product_views (customer_id INTEGER, product_id INTEGER, viewed_at TEXT);

INSERT INTO category VALUES (1, 'Coffee'), (2, 'Tea');
INSERT INTO product VALUES
  (1, 'Espresso Beans', 'dark roast coffee beans', 1, 12, 'active', 'approved'),
  (2, 'Arabica Coffee', 'medium roast coffee beans', 1, 15, 'active', 'approved'),
  (3, 'Green Tea', 'loose leaf green tea', 2, 8, 'active', NULL),
  (4, 'Coffee Grinder', 'burr grinder for coffee beans', 1, 60, 'active', 'approved');
INSERT INTO orders VALUES
  (1, 10, 1, 2, 'delivered', 'paid', '2026-01-01 10:00:00'),
  (2, 10, 2, 1, 'completed', 'paid', '2026-01-02 10:00:00'),
  (3, 11, 1, 1, 'delivered', 'paid', '2026-01-03 10:00:00'),
  (4, 11, 4, 1, 'confirmed', 'paid', '2026-01-04 10:00:00'),
  (5, 12, 3, 2, 'delivered', 'paid', '2026-01-05 10:00:00');
`

func setupDB(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")
	db, err := sql.Open("sqlite", "file:"+path)
	require.NoError(t, err)
	_, err = db.Exec(shopSchema)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	t.Setenv("SHOPREC_CONFIG", "")
	t.Setenv("SHOPREC_FEED_DRIVER", "sqlite")
	t.Setenv("SHOPREC_FEED_DSN", "file:"+path)
	t.Setenv("SHOPREC_STORE_DRIVER", "memory")
	t.Setenv("SHOPREC_LOG_LEVEL", "disabled")
}

func run(t *testing.T, args ...string) []byte {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs(args)
	require.NoError(t, root.ExecuteContext(context.Background()))
	return out.Bytes()
}

func TestRecommendCommand(t *testing.T) {
	setupDB(t)

	var got struct {
		UserID          int64         `json:"user_id"`
		Method          string        `json:"method"`
		Recommendations []productView `json:"recommendations"`
	}
	require.NoError(t, json.Unmarshal(run(t, "recommend", "-u", "10", "-n", "1", "-m", "content"), &got))

	assert.Equal(t, int64(10), got.UserID)
	assert.Equal(t, "content", got.Method)
	require.Len(t, got.Recommendations, 1)
	assert.Equal(t, int64(4), got.Recommendations[0].ProductID)
	assert.Equal(t, "Coffee Grinder", got.Recommendations[0].Name)
}

func TestSimilarCommand(t *testing.T) {
	setupDB(t)

	var got struct {
		SimilarProducts []productView `json:"similar_products"`
	}
	require.NoError(t, json.Unmarshal(run(t, "similar", "-p", "1", "-n", "2"), &got))
	require.Len(t, got.SimilarProducts, 2)
	for _, p := range got.SimilarProducts {
		assert.NotEqual(t, int64(1), p.ProductID)
	}
}

func TestTrainCommand(t *testing.T) {
	setupDB(t)

	var got map[string]any
	require.NoError(t, json.Unmarshal(run(t, "train"), &got))
	assert.Equal(t, true, got["collaborative"])
	assert.Equal(t, true, got["content"])
	assert.Equal(t, true, got["persisted"])
}

func TestConfigCommand(t *testing.T) {
	setupDB(t)
	t.Setenv("SHOPREC_ENGINE_EXCLUDE_INTERACTED", "true")

	out := string(run(t, "config"))
	assert.True(t, strings.Contains(out, "exclude_interacted: true"), out)
	assert.NotContains(t, out, "shop.db")
}

type statusOutput struct {
	Status struct {
		State string `json:"state"`
		RunID string `json:"run_id"`
	} `json:"status"`
}

func TestTrainThenStatus_BadgerPersists(t *testing.T) {
	setupDB(t)
	t.Setenv("SHOPREC_STORE_DRIVER", "badger")
	t.Setenv("SHOPREC_STORE_BADGER_DIR", t.TempDir())

	var trained struct {
		RunID     string `json:"run_id"`
		Persisted bool   `json:"persisted"`
	}
	require.NoError(t, json.Unmarshal(run(t, "train"), &trained))
	require.True(t, trained.Persisted)

	// 每条命令都是新的 runtime，状态只能来自磁盘
	var st statusOutput
	require.NoError(t, json.Unmarshal(run(t, "status"), &st))
	assert.Equal(t, "trained", st.Status.State)
	assert.Equal(t, trained.RunID, st.Status.RunID)

	var reset map[string]any
	require.NoError(t, json.Unmarshal(run(t, "reset"), &reset))
	assert.Equal(t, true, reset["reset"])

	st = statusOutput{}
	require.NoError(t, json.Unmarshal(run(t, "status"), &st))
	assert.Equal(t, "untrained", st.Status.State)
}

func TestMetricsFlag(t *testing.T) {
	setupDB(t)

	var out, errOut bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{"train", "--metrics"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	var got map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Contains(t, errOut.String(), `shoprec_train_runs_total{result="ok"} 1`)
	assert.Contains(t, errOut.String(), "# TYPE shoprec_train_duration_seconds histogram")
}

func TestMetricsFlag_Off(t *testing.T) {
	setupDB(t)

	var errOut bytes.Buffer
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&errOut)
	root.SetArgs([]string{"train"})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Empty(t, errOut.String())
}
