package treatment

import (
	"time"

	"github.com/curakidney/api/internal/platform/validation"
)

// PatientTreatment maps to the patient_treatments table.
type PatientTreatment struct {
	ID            int        `db:"id" json:"id"`
	TreatmentCode string     `db:"treatment_code" json:"treatment_code"`
	PatientName   string     `db:"patient_name" json:"patient_name"`
	PatientEmail  string     `db:"patient_email" json:"patient_email"`
	TreatmentType string     `db:"treatment_type" json:"treatment_type"`
	Status        string     `db:"status" json:"status"`
	PaymentStatus string     `db:"payment_status" json:"payment_status"`
	Amount        float64    `db:"amount" json:"amount"`
	ScheduledAt   *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// PaymentStatusUpdateRequest is the body of
// POST /patient-treatments/send-payment-status-update.
type PaymentStatusUpdateRequest struct {
	Email        string   `json:"email"`
	Name         string   `json:"name"`
	TreatmentIDs []string `json:"treatment_ids"`
	Amount       float64  `json:"amount"`
}

var PaymentStatusUpdateSchema = validation.Schema{
	Name: "PaymentStatusUpdateRequest",
	Fields: []validation.FieldRule{
		{Field: "email", Required: true, Type: validation.TypeString, Format: validation.FormatEmail,
			Description: "Recipient email address", Example: "patient@example.com"},
		{Field: "name", Required: true, Type: validation.TypeString, MinLength: 1, MaxLength: 200,
			Description: "Recipient name", Example: "Ana Pereira"},
		{Field: "treatment_ids", Required: true, Type: validation.TypeArray, Items: validation.TypeString, MinLength: 1,
			Description: "Treatment codes covered by the payment", Example: []string{"TRTMNT013801821"}},
		{Field: "amount", Required: true, Type: validation.TypeNumber,
			Description: "Amount paid", Example: 6775.25},
	},
}

const PaymentStatusUpdateSent = "Payment status update email sent successfully"

type MessageResponse struct {
	Message string `json:"message"`
}

func ptrTime(t time.Time) *time.Time { return &t }

// SeedTreatments returns the records the in-memory repository starts with.
// They match the seed migration.
func SeedTreatments() []PatientTreatment {
	created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	return []PatientTreatment{
		{
			ID: 1, TreatmentCode: "TRTMNT013801821",
			PatientName: "Ana Pereira", PatientEmail: "ana.pereira@example.com",
			TreatmentType: "hemodialysis", Status: "completed", PaymentStatus: "pending",
			Amount: 2258.42, ScheduledAt: ptrTime(time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)),
			CreatedAt: created, UpdatedAt: created,
		},
		{
			ID: 2, TreatmentCode: "TRTMNT02983798",
			PatientName: "Ana Pereira", PatientEmail: "ana.pereira@example.com",
			TreatmentType: "hemodialysis", Status: "completed", PaymentStatus: "pending",
			Amount: 2258.42, ScheduledAt: ptrTime(time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)),
			CreatedAt: created, UpdatedAt: created,
		},
		{
			ID: 3, TreatmentCode: "TRTMNT08979798",
			PatientName: "Ana Pereira", PatientEmail: "ana.pereira@example.com",
			TreatmentType: "nephrology consultation", Status: "scheduled", PaymentStatus: "pending",
			Amount: 2258.41, ScheduledAt: ptrTime(time.Date(2024, 3, 8, 14, 30, 0, 0, time.UTC)),
			CreatedAt: created, UpdatedAt: created,
		},
	}
}
