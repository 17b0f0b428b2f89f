// Copyright © 2025 Benjamin Schmitz

// This file is part of Nimbus.

// Nimbus is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License
// as published by the Free Software Foundation,
// either version 3 of the License, or (at your option)
// any later version.

// Nimbus is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public License
// along with Nimbus.  If not, see <http://www.gnu.org/licenses/>.

package users

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"golang.org/x/crypto/bcrypt"
	"umbasa.net/nimbus/auth"
	"umbasa.net/nimbus/entities"
	"umbasa.net/nimbus/faults"
	"umbasa.net/nimbus/logging"
	"umbasa.net/nimbus/tracing"
	"umbasa.net/nimbus/util"
)

const verificationCodeLength = 8

var Module = fx.Module("users",
	fx.Provide(
		NewMigrations,
		NewMailer,
		New,
	),
)

type Params struct {
	fx.In

	Db      *mongo.Database
	Logger  *logging.Logger
	Tracing tracing.Tracing
	Tokens  *auth.Tokens
	Mailer  Mailer
	Mig     Migrations
}

type Result struct {
	fx.Out

	UsersProvider *UsersProvider
}

type UsersProvider struct {
	log    *slog.Logger
	tracer trace.Tracer
	users  *mongo.Collection
	codes  *mongo.Collection
	tokens *auth.Tokens
	mailer Mailer
}

func New(p Params) (Result, error) {
	return Result{
		UsersProvider: &UsersProvider{
			log:    p.Logger.GetLogger("users"),
			tracer: p.Tracing.TracerProvider.Tracer("users"),
			users:  p.Db.Collection("users"),
			codes:  p.Db.Collection("verificationCodes"),
			tokens: p.Tokens,
			mailer: p.Mailer,
		},
	}, nil
}

func (u *UsersProvider) Signup(ctx context.Context, name string, email string, password string) (User, string, error) {
	ctx, span := u.tracer.Start(ctx, "signup")
	defer span.End()

	if name == "" || email == "" || password == "" {
		return User{}, "", faults.Validation("name, email and password are required")
	}

	filter := entities.MakePrototype(&UserPrototype{})
	filter.Email.Set(email)
	existing := User{}
	err := u.users.FindOne(ctx, filter).Decode(&existing)
	if err == nil {
		return User{}, "", faults.Conflict("user with this email already exists", existing)
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, "", faults.Storage("while checking for existing user", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, "", err
	}

	now := time.Now().UTC()
	proto := entities.MakePrototype(&UserPrototype{})
	proto.Name.Set(name)
	proto.Email.Set(email)
	proto.Password.Set(string(hash))
	proto.CreatedAt.Set(now)
	proto.UpdatedAt.Set(now)

	insertRes, err := u.users.InsertOne(ctx, proto)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return User{}, "", faults.Conflict("user with this email already exists", nil)
		}
		return User{}, "", faults.Storage("while creating user", err)
	}

	user := User{}
	if err := u.users.FindOne(ctx, bson.M{"_id": insertRes.InsertedID}).Decode(&user); err != nil {
		return User{}, "", faults.Storage("while reading created user", err)
	}

	token, err := u.tokens.Issue(user.Id.Hex(), user.Email)
	if err != nil {
		return User{}, "", err
	}

	return user, token, nil
}

func (u *UsersProvider) Login(ctx context.Context, email string, password string) (User, string, error) {
	ctx, span := u.tracer.Start(ctx, "login")
	defer span.End()

	user, err := u.byEmail(ctx, email)
	if err != nil {
		if faults.IsNotFound(err) {
			return User{}, "", faults.Auth("invalid credentials")
		}
		return User{}, "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return User{}, "", faults.Auth("invalid credentials")
	}

	token, err := u.tokens.Issue(user.Id.Hex(), user.Email)
	if err != nil {
		return User{}, "", err
	}

	return user, token, nil
}

func (u *UsersProvider) ChangePassword(ctx context.Context, email string, current string, newPassword string) error {
	ctx, span := u.tracer.Start(ctx, "changePassword")
	defer span.End()

	user, err := u.byEmail(ctx, email)
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(current)) != nil {
		return faults.Auth("current password does not match")
	}

	return u.setPassword(ctx, email, newPassword)
}

// ForgotPassword stores a fresh verification code for the account and
// sends it by mail. Any previously issued codes are invalidated.
func (u *UsersProvider) ForgotPassword(ctx context.Context, email string) error {
	ctx, span := u.tracer.Start(ctx, "forgotPassword")
	defer span.End()

	user, err := u.byEmail(ctx, email)
	if err != nil {
		return err
	}

	filter := entities.MakePrototype(&VerificationCodePrototype{})
	filter.Email.Set(email)
	deactivate := entities.MakePrototype(&VerificationCodePrototype{})
	deactivate.Active.Set(false)
	deactivate.UpdatedAt.Set(time.Now().UTC())
	if _, err := u.codes.UpdateMany(ctx, filter, bson.M{"$set": deactivate}); err != nil {
		return faults.Storage("while invalidating previous codes", err)
	}

	code := util.RandomString(verificationCodeLength)
	now := time.Now().UTC()
	proto := entities.MakePrototype(&VerificationCodePrototype{})
	proto.Email.Set(email)
	proto.Code.Set(code)
	proto.Active.Set(true)
	proto.CreatedAt.Set(now)
	proto.UpdatedAt.Set(now)

	if _, err := u.codes.InsertOne(ctx, proto); err != nil {
		return faults.Storage("while storing verification code", err)
	}

	err = u.mailer.Send(user.Email, "Your password reset code",
		"Use the following code to reset your password: "+code)
	if err != nil {
		u.log.Error("failed to send verification code", "email", email, "error", err)
		return faults.Storage("while sending verification code", err)
	}

	return nil
}

func (u *UsersProvider) VerifyResetCode(ctx context.Context, email string, code string) error {
	ctx, span := u.tracer.Start(ctx, "verifyResetCode")
	defer span.End()

	_, err := u.activeCode(ctx, email, code)
	return err
}

// ResetPassword consumes the verification code.
func (u *UsersProvider) ResetPassword(ctx context.Context, email string, code string, newPassword string) error {
	ctx, span := u.tracer.Start(ctx, "resetPassword")
	defer span.End()

	verification, err := u.activeCode(ctx, email, code)
	if err != nil {
		return err
	}

	if err := u.setPassword(ctx, email, newPassword); err != nil {
		return err
	}

	deactivate := entities.MakePrototype(&VerificationCodePrototype{})
	deactivate.Active.Set(false)
	deactivate.UpdatedAt.Set(time.Now().UTC())
	if _, err := u.codes.UpdateOne(ctx, bson.M{"_id": verification.Id}, bson.M{"$set": deactivate}); err != nil {
		return faults.Storage("while consuming verification code", err)
	}

	return nil
}

func (u *UsersProvider) GetUser(ctx context.Context, id primitive.ObjectID) (User, error) {
	ctx, span := u.tracer.Start(ctx, "getUser")
	defer span.End()

	user := User{}
	err := u.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, faults.NotFound("user not found")
		}
		return User{}, faults.Storage("while reading user", err)
	}
	return user, nil
}

func (u *UsersProvider) UpdateUser(ctx context.Context, id primitive.ObjectID, patch *UserPrototype) (User, error) {
	ctx, span := u.tracer.Start(ctx, "updateUser")
	defer span.End()

	if patch.Password.IsDefined() {
		hash, err := bcrypt.GenerateFromPassword([]byte(patch.Password.Get()), bcrypt.DefaultCost)
		if err != nil {
			return User{}, err
		}
		patch.Password.Set(string(hash))
	}
	patch.UpdatedAt.Set(time.Now().UTC())

	result := u.users.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": patch},
		options.FindOneAndUpdate().SetReturnDocument(options.After))
	if result.Err() != nil {
		if errors.Is(result.Err(), mongo.ErrNoDocuments) {
			return User{}, faults.NotFound("user not found")
		}
		return User{}, faults.Storage("while updating user", result.Err())
	}

	user := User{}
	result.Decode(&user)
	return user, nil
}

func (u *UsersProvider) DeleteUser(ctx context.Context, id primitive.ObjectID) error {
	ctx, span := u.tracer.Start(ctx, "deleteUser")
	defer span.End()

	result := u.users.FindOneAndDelete(ctx, bson.M{"_id": id})
	if result.Err() != nil {
		if errors.Is(result.Err(), mongo.ErrNoDocuments) {
			return faults.NotFound("user not found")
		}
		return faults.Storage("while deleting user", result.Err())
	}
	return nil
}

func (u *UsersProvider) byEmail(ctx context.Context, email string) (User, error) {
	filter := entities.MakePrototype(&UserPrototype{})
	filter.Email.Set(email)

	user := User{}
	err := u.users.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, faults.NotFound("user not found")
		}
		return User{}, faults.Storage("while reading user", err)
	}
	return user, nil
}

func (u *UsersProvider) activeCode(ctx context.Context, email string, code string) (VerificationCode, error) {
	filter := entities.MakePrototype(&VerificationCodePrototype{})
	filter.Email.Set(email)
	filter.Code.Set(code)
	filter.Active.Set(true)

	verification := VerificationCode{}
	err := u.codes.FindOne(ctx, filter).Decode(&verification)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return VerificationCode{}, faults.Validation("invalid or expired verification code")
		}
		return VerificationCode{}, faults.Storage("while reading verification code", err)
	}
	return verification, nil
}

func (u *UsersProvider) setPassword(ctx context.Context, email string, newPassword string) error {
	if newPassword == "" {
		return faults.Validation("password must not be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	filter := entities.MakePrototype(&UserPrototype{})
	filter.Email.Set(email)
	update := entities.MakePrototype(&UserPrototype{})
	update.Password.Set(string(hash))
	update.UpdatedAt.Set(time.Now().UTC())

	result := u.users.FindOneAndUpdate(ctx, filter, bson.M{"$set": update})
	if result.Err() != nil {
		if errors.Is(result.Err(), mongo.ErrNoDocuments) {
			return faults.NotFound("user not found")
		}
		return faults.Storage("while updating password", result.Err())
	}
	return nil
}
