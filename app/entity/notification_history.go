package entity

const (
	NotificationStatusNew        int16 = 0
	NotificationStatusProcessing int16 = 1
	NotificationStatusPublished  int16 = 10
	NotificationStatusNothingDue int16 = 20
	NotificationStatusFailed     int16 = 40
)

type NotificationHistory struct {
	RequestID   string
	UserID      string
	HorizonDays int
	Payload     string
	Status      int16
	Attempts    int
}
