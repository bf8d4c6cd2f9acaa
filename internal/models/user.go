package models

// User struct matches the document in MongoDB
type User struct {
	ID          string `bson:"_id" json:"id"`
	Username    string `bson:"username" json:"username"`
	DisplayName string `bson:"display_name" json:"display_name"`
	Password    string `bson:"password" json:"-"`
	Role        string `bson:"role" json:"role"`
	WorkerID    string `bson:"worker_id,omitempty" json:"worker_id"`
	Active      bool   `bson:"active" json:"active"`
}
