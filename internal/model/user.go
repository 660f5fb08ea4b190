package model

import "go.mongodb.org/mongo-driver/bson/primitive"

type (
	// User is this device's identity: the account it belongs to plus the
	// long-term private key material backing its sessions.
	User struct {
		ID       primitive.ObjectID `bson:"_id,omitempty" json:"-"`
		UserID   UserID             `bson:"user_id" json:"userId"`
		ClientID ClientID           `bson:"client_id" json:"clientId"`
		Name     string             `bson:"name" json:"name"`
		IKPriv   []byte             `bson:"ik_priv" json:"-"`
		SPKPriv  []byte             `bson:"spk_priv" json:"-"`
		SigPriv  []byte             `bson:"sig_priv" json:"-"`
	}

	// UserDetail is the public view of a user, cached locally.
	UserDetail struct {
		UserID UserID `json:"userId"`
		Name   string `json:"name"`
	}
)
