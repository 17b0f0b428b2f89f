package users

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"umbasa.net/nimbus/entities"
)

type UserPrototype struct {
	entities.Prototype

	Id        entities.Definable[primitive.ObjectID] `bson:"_id" json:"-"`
	Name      entities.Definable[string]             `bson:"name" json:"name"`
	Email     entities.Definable[string]             `bson:"email" json:"email"`
	Password  entities.Definable[string]             `bson:"password" json:"password"`
	CreatedAt entities.Definable[time.Time]          `bson:"createdAt" json:"-"`
	UpdatedAt entities.Definable[time.Time]          `bson:"updatedAt" json:"-"`
}

type User struct {
	Id        primitive.ObjectID `bson:"_id" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email" json:"email"`
	Password  string             `bson:"password" json:"-"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type VerificationCodePrototype struct {
	entities.Prototype

	Email     entities.Definable[string]    `bson:"email"`
	Code      entities.Definable[string]    `bson:"code"`
	Active    entities.Definable[bool]      `bson:"active"`
	CreatedAt entities.Definable[time.Time] `bson:"createdAt"`
	UpdatedAt entities.Definable[time.Time] `bson:"updatedAt"`
}

type VerificationCode struct {
	Id        primitive.ObjectID `bson:"_id"`
	Email     string             `bson:"email"`
	Code      string             `bson:"code"`
	Active    bool               `bson:"active"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}
