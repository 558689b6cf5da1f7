package reports

import "time"

type Category string

const (
	CategoryPotholes     Category = "Potholes"
	CategorySanitation   Category = "Sanitation"
	CategoryStreetlights Category = "Streetlights"
	CategoryWaterSupply  Category = "Water Supply"
	CategoryDrainage     Category = "Drainage"
	CategoryTraffic      Category = "Traffic"
	CategoryParks        Category = "Parks"
	CategoryOther        Category = "Other"
)

var Categories = []Category{
	CategoryPotholes,
	CategorySanitation,
	CategoryStreetlights,
	CategoryWaterSupply,
	CategoryDrainage,
	CategoryTraffic,
	CategoryParks,
	CategoryOther,
}

func ValidCategory(s string) bool {
	for _, c := range Categories {
		if string(c) == s {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusSubmitted  Status = "Submitted"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
)

var Statuses = []Status{StatusSubmitted, StatusInProgress, StatusResolved}

func ValidStatus(s string) bool {
	for _, st := range Statuses {
		if string(st) == s {
			return true
		}
	}
	return false
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// UserRef is the populated view of an account referenced by a report.
type UserRef struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

type Report struct {
	ID                 string    `json:"_id"`
	UserID             string    `json:"userId"`
	User               *UserRef  `json:"user,omitempty"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	PhotoURL           string    `json:"photoUrl"`
	Location           Location  `json:"location"`
	Category           Category  `json:"category"`
	Status             Status    `json:"status"`
	AdminNotes         string    `json:"adminNotes"`
	AssignedAdmin      *string   `json:"assignedAdmin"`
	AssignedAdminUser  *UserRef  `json:"assignedAdminUser,omitempty"`
	StatusUpdatedAt    time.Time `json:"statusUpdatedAt"`
	AdditionalComments string    `json:"additionalComments"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// StatusChange is an admin decision on a report. A nil AdminNotes keeps the stored notes.
type StatusChange struct {
	Status     Status
	AdminNotes *string
	AdminID    string
	At         time.Time
}

type Bucket struct {
	ID    string `json:"_id" bson:"_id"`
	Count int64  `json:"count" bson:"count"`
}

type RecentReport struct {
	ID        string    `json:"_id"`
	Title     string    `json:"title"`
	Status    Status    `json:"status"`
	Category  Category  `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
	UserID    string    `json:"userId"`
	User      *UserRef  `json:"user,omitempty"`
}

type Stats struct {
	TotalReports      int64          `json:"totalReports"`
	SubmittedReports  int64          `json:"submittedReports"`
	InProgressReports int64          `json:"inProgressReports"`
	ResolvedReports   int64          `json:"resolvedReports"`
	ByCategory        []Bucket       `json:"reportsByCategory"`
	ByStatus          []Bucket       `json:"reportsByStatus"`
	OverTime          []Bucket       `json:"reportsOverTime"`
	Recent            []RecentReport `json:"recentReports"`
}

// tally fills the per-status totals from ByStatus.
func (s *Stats) tally() {
	s.TotalReports, s.SubmittedReports, s.InProgressReports, s.ResolvedReports = 0, 0, 0, 0
	for _, b := range s.ByStatus {
		s.TotalReports += b.Count
		switch Status(b.ID) {
		case StatusSubmitted:
			s.SubmittedReports = b.Count
		case StatusInProgress:
			s.InProgressReports = b.Count
		case StatusResolved:
			s.ResolvedReports = b.Count
		}
	}
}
