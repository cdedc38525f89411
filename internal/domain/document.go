package domain

import "time"

// Document is the metadata row for a visa document stored in S3
// (passport scans, photos, bank statements uploaded during an application).
type Document struct {
	DocumentID  string    `json:"id" dynamodbav:"document_id"`
	Object      string    `json:"-" dynamodbav:"object"` // S3 key
	Name        string    `json:"name" dynamodbav:"name"`
	Type        string    `json:"type" dynamodbav:"type"` // content type
	Size        int64     `json:"size" dynamodbav:"size"`
	Hash        string    `json:"hash" dynamodbav:"hash"` // sha256 of the payload
	Category    string    `json:"category" dynamodbav:"category"`
	OwnerUserID string    `json:"owner_user_id" dynamodbav:"owner_user_id"`
	Enable      bool      `json:"enable" dynamodbav:"enable"`
	CreatedAt   time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt   time.Time `json:"updated" dynamodbav:"updated_at"`
}
