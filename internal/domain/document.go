package domain

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentRecord is the registry entity for one issued document. DocID is the
// caller-assigned primary identity; every other field is replaced on re-issue.
// BoundHash is derived from (doc_id, holder_name, doc_type, issue_date,
// file_hash); mutating any of those without re-issuing invalidates every
// previously printed QR stamp.
type DocumentRecord struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"-"`

	DocID      string `gorm:"column:doc_id;uniqueIndex;not null" json:"doc_id"`
	HolderName string `gorm:"column:holder_name;not null" json:"holder_name"`
	DocType    string `gorm:"column:doc_type;not null" json:"doc_type"`
	IssueDate  string `gorm:"column:issue_date;not null" json:"issue_date"`
	ExpiryDate string `gorm:"column:expiry_date" json:"expiry_date"`
	Additional string `gorm:"column:additional;type:text" json:"additional"`

	FileHash       string         `gorm:"column:file_hash" json:"file_hash"`
	VisualHash     string         `gorm:"column:visual_hash" json:"visual_hash"`
	PerceptualHash string         `gorm:"column:perceptual_hash" json:"perceptual_hash"`
	TextFeatures   datatypes.JSON `gorm:"column:text_features;type:jsonb" json:"text_features,omitempty"`

	BoundHash string `gorm:"column:bound_hash" json:"hash"`
	VerifyURL string `gorm:"column:verify_url" json:"verify_url"`

	IssuedAt  time.Time      `gorm:"column:issued_at;not null;autoCreateTime;index" json:"timestamp"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (DocumentRecord) TableName() string { return "documents" }

// TextFeatures is the coarse layout/contrast signature captured at issuance
// and recomputed at verification time.
type TextFeatures struct {
	MeanIntensity float64 `json:"mean_intensity"`
	StdIntensity  float64 `json:"std_intensity"`
	SizeRatio     float64 `json:"size_ratio"`
	PixelCount    int     `json:"pixel_count"`
}

func (r *DocumentRecord) SetTextFeatures(tf *TextFeatures) error {
	if tf == nil {
		r.TextFeatures = nil
		return nil
	}
	raw, err := json.Marshal(tf)
	if err != nil {
		return err
	}
	r.TextFeatures = datatypes.JSON(raw)
	return nil
}

// GetTextFeatures returns nil when no features were stored or the stored
// blob is malformed; comparison treats nil as neutral rather than a veto.
func (r *DocumentRecord) GetTextFeatures() *TextFeatures {
	if len(r.TextFeatures) == 0 {
		return nil
	}
	var tf TextFeatures
	if err := json.Unmarshal(r.TextFeatures, &tf); err != nil {
		return nil
	}
	return &tf
}
