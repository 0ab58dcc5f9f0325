// Package categories assigns topics to one of a fixed set of categories by
// keyword matching.
package categories

import (
	"strings"

	"github.com/flashlearn/backend/internal/models"
)

// Default is returned when no category has a single keyword match.
const Default = models.CategoryProgramming

type entry struct {
	category models.Category
	keywords []string
}

// table order decides ties: the earlier category wins.
var table = []entry{
	{models.CategoryReact, []string{
		"react", "jsx", "hooks", "redux", "next.js", "nextjs", "usestate", "useeffect", "react native",
	}},
	{models.CategoryWeb, []string{
		"html", "css", "javascript", "typescript", "dom", "browser", "frontend", "tailwind",
		"vue", "angular", "svelte", "web", "cascading style sheets", "http",
	}},
	{models.CategoryBackend, []string{
		"node", "express", "api", "rest", "graphql", "backend", "server", "django",
		"flask", "spring", "microservice", "grpc",
	}},
	{models.CategoryDatabase, []string{
		"sql", "postgres", "mysql", "mongodb", "database", "redis", "index", "query",
		"nosql", "orm", "transaction", "sqlite",
	}},
	{models.CategoryDevOps, []string{
		"docker", "kubernetes", "k8s", "ci/cd", "jenkins", "terraform", "ansible",
		"devops", "deployment", "helm", "pipeline", "github actions", "linux",
	}},
	{models.CategoryCloud, []string{
		"aws", "azure", "gcp", "google cloud", "cloud", "serverless", "lambda", "s3", "ec2",
	}},
	{models.CategoryMobile, []string{
		"android", "ios", "swift", "kotlin", "flutter", "mobile", "swiftui", "xcode",
	}},
	{models.CategoryDataScience, []string{
		"machine learning", "deep learning", "neural", "pandas", "numpy", "statistics",
		"data science", "tensorflow", "pytorch", "regression", "llm",
	}},
	{models.CategorySecurity, []string{
		"security", "encryption", "oauth", "jwt", "xss", "csrf", "authentication",
		"cryptography", "owasp", "tls",
	}},
	{models.CategoryCSFundamentals, []string{
		"algorithm", "data structure", "sorting", "recursion", "big o", "graph",
		"binary tree", "linked list", "hash table", "dynamic programming", "operating system",
	}},
	{models.CategoryProgramming, []string{
		"python", "java", "golang", "rust", "c++", "c#", "programming", "oop",
		"functional programming", "concurrency", "design pattern",
	}},
}

// Classify returns the category whose keywords best match topic.
//
// A keyword matches when it is contained in the lower-cased topic or the
// topic is contained in it, so short and long spellings of a term both
// count. The strictly highest count wins; a topic with no match at all gets
// Default.
func Classify(topic string) models.Category {
	t := strings.ToLower(strings.TrimSpace(topic))
	if t == "" {
		return Default
	}

	best := Default
	bestScore := 0
	for _, e := range table {
		score := 0
		for _, k := range e.keywords {
			if strings.Contains(t, k) || strings.Contains(k, t) {
				score++
			}
		}
		if score > bestScore {
			best = e.category
			bestScore = score
		}
	}
	return best
}

// ClassifyAll classifies each distinct topic once. Keys are the topics as
// given.
func ClassifyAll(topics []string) map[string]models.Category {
	out := make(map[string]models.Category, len(topics))
	for _, topic := range topics {
		if _, ok := out[topic]; ok {
			continue
		}
		out[topic] = Classify(topic)
	}
	return out
}

// All returns every category in table order.
func All() []models.Category {
	cats := make([]models.Category, 0, len(table))
	for _, e := range table {
		cats = append(cats, e.category)
	}
	return cats
}

// Resolve returns the stored category when present and a classified one
// otherwise.
func Resolve(topic string, stored *models.Category) models.Category {
	if stored != nil && *stored != "" {
		return *stored
	}
	return Classify(topic)
}
