package domain

import "time"

// BaseModel provides common timestamps for domain models / Fournit les horodatages communs aux modèles
type BaseModel struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Touch sets timestamps for write / Positionne les horodatages pour une écriture
func (bm *BaseModel) Touch(now time.Time) {
	if bm.CreatedAt.IsZero() {
		bm.CreatedAt = now
	}
	bm.UpdatedAt = now
}
