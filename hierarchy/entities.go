package hierarchy

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"umbasa.net/nimbus/entities"
)

// Root folders and files carry the zero ObjectID as parent/folder.

type FolderPrototype struct {
	entities.Prototype

	Id         entities.Definable[primitive.ObjectID] `bson:"_id" json:"-"`
	Name       entities.Definable[string]             `bson:"name" json:"name"`
	Parent     entities.Definable[primitive.ObjectID] `bson:"parent" json:"parent"`
	Owner      entities.Definable[primitive.ObjectID] `bson:"owner" json:"-"`
	Favourite  entities.Definable[bool]               `bson:"favourite" json:"favourite"`
	SharedWith entities.Definable[[]SharedWith]       `bson:"sharedWith" json:"-"`
	CreatedAt  entities.Definable[time.Time]          `bson:"createdAt" json:"-"`
	UpdatedAt  entities.Definable[time.Time]          `bson:"updatedAt" json:"-"`
}

type Folder struct {
	Id         primitive.ObjectID `bson:"_id" json:"id"`
	Name       string             `bson:"name" json:"name"`
	Parent     primitive.ObjectID `bson:"parent" json:"parent"`
	Owner      primitive.ObjectID `bson:"owner" json:"owner"`
	Favourite  bool               `bson:"favourite" json:"favourite"`
	SharedWith []SharedWith       `bson:"sharedWith" json:"sharedWith"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type FilePrototype struct {
	entities.Prototype

	Id            entities.Definable[primitive.ObjectID] `bson:"_id" json:"-"`
	Name          entities.Definable[string]             `bson:"name" json:"name"`
	Owner         entities.Definable[primitive.ObjectID] `bson:"owner" json:"-"`
	Folder        entities.Definable[primitive.ObjectID] `bson:"folder" json:"folder"`
	Url           entities.Definable[string]             `bson:"url" json:"-"`
	FileType      entities.Definable[string]             `bson:"fileType" json:"fileType"`
	FileSize      entities.Definable[string]             `bson:"fileSize" json:"fileSize"`
	FileExtension entities.Definable[string]             `bson:"fileExtension" json:"fileExtension"`
	Favourite     entities.Definable[bool]               `bson:"favourite" json:"favourite"`
	SharedWith    entities.Definable[[]SharedWith]       `bson:"sharedWith" json:"-"`
	AccessLogs    entities.Definable[[]AccessLog]        `bson:"accessLogs" json:"-"`
	SharedLinks   entities.Definable[[]SharedLink]       `bson:"sharedLinks" json:"-"`
	CreatedAt     entities.Definable[time.Time]          `bson:"createdAt" json:"-"`
	UpdatedAt     entities.Definable[time.Time]          `bson:"updatedAt" json:"-"`
}

type File struct {
	Id            primitive.ObjectID `bson:"_id" json:"id"`
	Name          string             `bson:"name" json:"name"`
	Owner         primitive.ObjectID `bson:"owner" json:"owner"`
	Folder        primitive.ObjectID `bson:"folder" json:"folder"`
	Url           string             `bson:"url" json:"-"`
	FileType      string             `bson:"fileType" json:"fileType"`
	FileSize      string             `bson:"fileSize" json:"fileSize"`
	FileExtension string             `bson:"fileExtension" json:"fileExtension"`
	Favourite     bool               `bson:"favourite" json:"favourite"`
	SharedWith    []SharedWith       `bson:"sharedWith" json:"sharedWith"`
	AccessLogs    []AccessLog        `bson:"accessLogs" json:"accessLogs"`
	SharedLinks   []SharedLink       `bson:"sharedLinks" json:"sharedLinks"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`

	// resolved from the blob store, not persisted
	DownloadUrl string `bson:"-" json:"downloadUrl,omitempty"`
}

type SharedWith struct {
	UserId     primitive.ObjectID `bson:"userId" json:"userId"`
	Permission string             `bson:"permission" json:"permission"`
}

type AccessLog struct {
	UserId     primitive.ObjectID `bson:"userId" json:"userId"`
	AccessTime time.Time          `bson:"accessTime" json:"accessTime"`
}

type SharedLink struct {
	Link      string    `bson:"link" json:"link"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}
