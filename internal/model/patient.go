// internal/model/patient.go
package model

type Patient struct {
	ID        string `db:"id" json:"id"`
	ClinicID  string `db:"clinic_id" json:"clinic_id"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	Phone     string `db:"phone" json:"phone"`
}
