package model

import "time"

// Screenshot is a captured full-page image kept until the next capture session
type Screenshot struct {
	ID        string    `json:"id"`
	RouteID   string    `json:"routeId"`
	RouteURL  string    `json:"routeUrl"`
	DataURL   string    `json:"dataUrl"`
	TabID     string    `json:"tabId,omitempty"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// File is a generated document or image ready to be written out
type File struct {
	Filename string `json:"filename"`
	Content  string `json:"content"` // plain text or a data: URL
	MimeType string `json:"mimeType"`
}

// FailedFile is a file that could not be written
type FailedFile struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// ExportSummary counts what an export run covered
type ExportSummary struct {
	TotalRoutes     int `json:"totalRoutes"`
	FailedRoutes    int `json:"failedRoutes"`
	TotalSections   int `json:"totalSections"`
	TotalComponents int `json:"totalComponents"`
	Screenshots     int `json:"screenshots"`
}

// Segment is one region found by image segmentation
type Segment struct {
	Type          string   `json:"type"`
	ComponentType string   `json:"componentType"`
	Bounds        Bounds   `json:"bounds"`
	Elements      []string `json:"elements"`
	Content       string   `json:"content"`
	Confidence    float64  `json:"confidence,omitempty"`
}

// Segmentation is the optional vision-model view of a screenshot
type Segmentation struct {
	Sections   []Segment `json:"sections"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
}
