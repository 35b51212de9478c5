// Package e2e provides end-to-end tests over a seeded example corpus.
package e2e

import (
	"fmt"

	"github.com/sqlpilot/sqlpilot/internal/models"
)

// RetrievalCase defines a retrieval query and the example ID that must
// rank first. Queries reuse the stored question text verbatim so the
// deterministic embedder scores the target example at exactly 1.0.
type RetrievalCase struct {
	Query       string
	Tables      []string
	ExpectedID  string
	Description string
}

// Corpus holds seeded examples and retrieval test cases.
type Corpus struct {
	Examples   []models.Example
	Cases      []RetrievalCase
	TotalCases int
}

// BuildCorpus returns a corpus of examples over a retail schema
// (customers, orders, order_items, products, employees) plus retrieval
// test cases derived from them.
func BuildCorpus() *Corpus {
	entries := []struct {
		question   string
		sql        string
		tables     []string
		complexity models.Complexity
	}{
		{"show me all customers", "SELECT * FROM customers", []string{"customers"}, models.ComplexitySimple},
		{"list customers from Berlin", "SELECT * FROM customers WHERE city = 'Berlin'", []string{"customers"}, models.ComplexitySimple},
		{"how many customers do we have", "SELECT COUNT(*) FROM customers", []string{"customers"}, models.ComplexitySimple},
		{"show me all orders", "SELECT * FROM orders", []string{"orders"}, models.ComplexitySimple},
		{"list orders placed this year", "SELECT * FROM orders WHERE order_date >= '2026-01-01'", []string{"orders"}, models.ComplexitySimple},
		{"how many orders were shipped", "SELECT COUNT(*) FROM orders WHERE status = 'shipped'", []string{"orders"}, models.ComplexitySimple},
		{"show me all products", "SELECT * FROM products", []string{"products"}, models.ComplexitySimple},
		{"list products under ten dollars", "SELECT * FROM products WHERE price < 10", []string{"products"}, models.ComplexitySimple},
		{"what is the average product price", "SELECT AVG(price) FROM products", []string{"products"}, models.ComplexitySimple},
		{"show me all employees", "SELECT * FROM employees", []string{"employees"}, models.ComplexitySimple},
		{"list employees hired last year", "SELECT * FROM employees WHERE hire_date >= '2025-01-01' AND hire_date < '2026-01-01'", []string{"employees"}, models.ComplexitySimple},
		{
			"show orders with their customer names",
			"SELECT o.id, c.name FROM orders o JOIN customers c ON c.id = o.customer_id",
			[]string{"orders", "customers"}, models.ComplexitySimple,
		},
		{
			"total order value per customer",
			"SELECT c.name, SUM(oi.quantity * oi.unit_price) FROM customers c JOIN orders o ON o.customer_id = c.id JOIN order_items oi ON oi.order_id = o.id GROUP BY c.name",
			[]string{"customers", "orders", "order_items"}, models.ComplexityMedium,
		},
		{
			"count orders per status",
			"SELECT status, COUNT(*) FROM orders GROUP BY status",
			[]string{"orders"}, models.ComplexitySimple,
		},
		{
			"top five products by revenue",
			"SELECT p.name, SUM(oi.quantity * oi.unit_price) AS revenue FROM products p JOIN order_items oi ON oi.product_id = p.id GROUP BY p.name ORDER BY revenue DESC LIMIT 5",
			[]string{"products", "order_items"}, models.ComplexityMedium,
		},
		{
			"customers with more than three orders",
			"SELECT c.name, COUNT(*) AS n FROM customers c JOIN orders o ON o.customer_id = c.id GROUP BY c.name HAVING COUNT(*) > 3",
			[]string{"customers", "orders"}, models.ComplexityMedium,
		},
		{
			"customers who spent over one thousand",
			"SELECT c.name, SUM(oi.quantity * oi.unit_price) AS spent FROM customers c JOIN orders o ON o.customer_id = c.id JOIN order_items oi ON oi.order_id = o.id GROUP BY c.name HAVING SUM(oi.quantity * oi.unit_price) > 1000",
			[]string{"customers", "orders", "order_items"}, models.ComplexityComplex,
		},
		{
			"products never ordered",
			"SELECT * FROM products WHERE id NOT IN (SELECT product_id FROM order_items)",
			[]string{"products", "order_items"}, models.ComplexityMedium,
		},
		{
			"average items per order",
			"SELECT AVG(n) FROM (SELECT COUNT(*) AS n FROM order_items GROUP BY order_id)",
			[]string{"order_items"}, models.ComplexityMedium,
		},
		{
			"all people names in one list",
			"SELECT name FROM customers UNION SELECT name FROM employees",
			[]string{"customers", "employees"}, models.ComplexityMedium,
		},
		{
			"which employee handled the most orders",
			"SELECT e.name, COUNT(*) AS n FROM employees e JOIN orders o ON o.employee_id = e.id GROUP BY e.name ORDER BY n DESC LIMIT 1",
			[]string{"employees", "orders"}, models.ComplexityMedium,
		},
	}

	examples := make([]models.Example, len(entries))
	for i, e := range entries {
		examples[i] = models.Example{
			ID:           fmt.Sprintf("corpus-%03d", i+1),
			NaturalQuery: e.question,
			SQL:          e.sql,
			Tables:       e.tables,
			Complexity:   e.complexity,
			Tags:         []string{"seed"},
		}
	}

	cases := buildRetrievalCases(examples)
	return &Corpus{Examples: examples, Cases: cases, TotalCases: len(cases)}
}

// buildRetrievalCases produces one identity-retrieval case per example,
// plus table-filtered variants for examples with a single-table scope.
func buildRetrievalCases(examples []models.Example) []RetrievalCase {
	var cases []RetrievalCase
	for _, ex := range examples {
		cases = append(cases, RetrievalCase{
			Query:       ex.NaturalQuery,
			ExpectedID:  ex.ID,
			Description: fmt.Sprintf("query %q should rank %s first", ex.NaturalQuery, ex.ID),
		})
		if len(ex.Tables) == 1 {
			cases = append(cases, RetrievalCase{
				Query:       ex.NaturalQuery,
				Tables:      ex.Tables,
				ExpectedID:  ex.ID,
				Description: fmt.Sprintf("query %q filtered to %v should rank %s first", ex.NaturalQuery, ex.Tables, ex.ID),
			})
		}
	}
	return cases
}
