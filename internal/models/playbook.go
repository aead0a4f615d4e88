// ABOUTME: Playbook knowledge base models
// ABOUTME: Bullets are the unit of retrieval; hits carry a similarity score
package models

import "time"

// Bullet is a single playbook entry
type Bullet struct {
	ID      string `json:"id"`
	Section string `json:"section"`
	Content string `json:"content"`
}

// BulletEmbedding is a bullet with its embedding vector as stored in the index
type BulletEmbedding struct {
	Bullet
	Collection string    `json:"collection"`
	Vector     []float64 `json:"vector"`
	CreatedAt  time.Time `json:"created_at"`
}

// PlaybookHit is a ranked search result
type PlaybookHit struct {
	ID              string  `json:"id"`
	Section         string  `json:"section"`
	Text            string  `json:"text"`
	SimilarityScore float64 `json:"similarity_score"`
}
