// Package feed 提供训练数据源（core.DataFeed）的实现。
package feed

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/rushteam/shoprec/core"
)

// 支持的数据库驱动
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// 计入交互的订单状态与计入购买数的订单状态。
const (
	countedStatuses   = `'delivered', 'completed', 'confirmed', 'preparing', 'packed', 'for_pickup', 'out_for_delivery'`
	purchasedStatuses = `'delivered', 'completed', 'confirmed'`
)

const (
	interactionsQuery = `
SELECT customer_id, product_id, SUM(quantity) AS total_quantity, COUNT(*) AS order_count
FROM orders
WHERE status IN (` + countedStatuses + `)
  AND payment_status = 'paid'
GROUP BY customer_id, product_id
ORDER BY customer_id, product_id`

	productsQuery = `
SELECT p.product_id, p.name, p.description, p.category_id, p.price,
       c.name AS category_name,
       COALESCE(AVG(r.rating), 0) AS avg_rating,
       COUNT(DISTINCT o.orders_id) AS purchase_count
FROM product p
LEFT JOIN category c ON p.category_id = c.category_id
LEFT JOIN orders o ON p.product_id = o.product_id
  AND o.status IN (` + purchasedStatuses + `)
LEFT JOIN rating r ON o.orders_id = r.orders_id
WHERE p.status = 'active'
  AND (p.moderation_status = 'approved' OR p.moderation_status IS NULL)
GROUP BY p.product_id, p.name, p.description, p.category_id, p.price, c.name
ORDER BY p.product_id`

	searchesQuery = `
SELECT customer_id, search_term, category_id, COUNT(*) AS search_count
FROM user_searches
WHERE created_at >= ?
GROUP BY customer_id, search_term, category_id
ORDER BY customer_id, search_term`

	historyQuery = `
SELECT DISTINCT product_id FROM (
  SELECT product_id FROM orders WHERE customer_id = ?
  UNION
  SELECT product_id FROM product_views WHERE customer_id = ?
) AS interacted
ORDER BY product_id
LIMIT ?`
)

// sqliteTimeLayout 是 sqlite 中 created_at 的文本格式。
const sqliteTimeLayout = "2006-01-02 15:04:05"

// SQLFeed 从电商业务库读取训练数据。
type SQLFeed struct {
	db     *sql.DB
	driver string
}

// OpenSQL 打开数据库并 Ping 一次。
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLFeed, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, errors.Errorf("unsupported feed driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s database", driver)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}
	return NewSQLFeed(db, driver), nil
}

// NewSQLFeed 使用已打开的连接。
func NewSQLFeed(db *sql.DB, driver string) *SQLFeed {
	return &SQLFeed{db: db, driver: driver}
}

func (f *SQLFeed) Name() string { return "sql." + f.driver }

func (f *SQLFeed) Close() error {
	return f.db.Close()
}

func (f *SQLFeed) Interactions(ctx context.Context) ([]core.Interaction, error) {
	rows, err := f.db.QueryContext(ctx, interactionsQuery)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query interactions")
	}
	defer rows.Close()

	var out []core.Interaction
	for rows.Next() {
		var in core.Interaction
		if err := rows.Scan(&in.UserID, &in.ProductID, &in.TotalQuantity, &in.OrderCount); err != nil {
			return nil, errors.Wrap(err, "failed to scan interaction")
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate interactions")
	}
	return out, nil
}

func (f *SQLFeed) Products(ctx context.Context) ([]core.Product, error) {
	rows, err := f.db.QueryContext(ctx, productsQuery)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query products")
	}
	defer rows.Close()

	var out []core.Product
	for rows.Next() {
		var (
			p            core.Product
			description  sql.NullString
			categoryID   sql.NullInt64
			price        sql.NullFloat64
			categoryName sql.NullString
		)
		if err := rows.Scan(&p.ProductID, &p.Name, &description, &categoryID, &price,
			&categoryName, &p.AvgRating, &p.PurchaseCount); err != nil {
			return nil, errors.Wrap(err, "failed to scan product")
		}
		p.Description = description.String
		p.CategoryID = categoryID.Int64
		p.Price = price.Float64
		p.CategoryName = categoryName.String
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate products")
	}
	return out, nil
}

func (f *SQLFeed) Searches(ctx context.Context, since time.Time) ([]core.Search, error) {
	var arg any = since.UTC()
	if f.driver == DriverSQLite {
		arg = since.UTC().Format(sqliteTimeLayout)
	}
	rows, err := f.db.QueryContext(ctx, f.rebind(searchesQuery), arg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query searches")
	}
	defer rows.Close()

	var out []core.Search
	for rows.Next() {
		var (
			s          core.Search
			categoryID sql.NullInt64
		)
		if err := rows.Scan(&s.UserID, &s.Term, &categoryID, &s.Count); err != nil {
			return nil, errors.Wrap(err, "failed to scan search")
		}
		s.CategoryID = categoryID.Int64
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate searches")
	}
	return out, nil
}

func (f *SQLFeed) UserHistory(ctx context.Context, userID int64, limit int) ([]int64, error) {
	rows, err := f.db.QueryContext(ctx, f.rebind(historyQuery), userID, userID, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query history of user %d", userID)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan history")
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate history")
	}
	return out, nil
}

// rebind 把 ? 占位符改写为 postgres 的 $n。
func (f *SQLFeed) rebind(query string) string {
	if f.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var _ core.DataFeed = (*SQLFeed)(nil)
