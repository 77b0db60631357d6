// Package seed provisions a demo household so a fresh install has
// something to connect to: three users with different roles, one house
// with furnished rooms, and an armed-able alarm.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/hallfield/homehub-core/internal/auth"
	"github.com/hallfield/homehub-core/internal/house"
	"github.com/hallfield/homehub-core/internal/infrastructure/logging"
)

// demoUser pairs an account with the role it gets in the demo house.
type demoUser struct {
	username string
	password string
	role     auth.Role
}

var demoUsers = []demoUser{
	{"alice", "alice-demo-password", auth.RoleAdmin},
	{"bob", "bob-demo-password", auth.RoleRegular},
	{"carol", "carol-demo-password", auth.RoleGuest},
}

// Demo creates the demo household. Running against a store that already
// holds the demo users is a no-op.
func Demo(ctx context.Context, authRepo auth.Repository, houseRepo house.Repository, logger *logging.Logger) error {
	if _, err := authRepo.GetUserByUsername(ctx, demoUsers[0].username); err == nil {
		logger.Info("demo data already present, skipping seed")
		return nil
	} else if !errors.Is(err, auth.ErrUserNotFound) {
		return fmt.Errorf("checking for demo data: %w", err)
	}

	h, err := houseRepo.CreateHouse(ctx, "Maple Street 12")
	if err != nil {
		return fmt.Errorf("creating demo house: %w", err)
	}

	users := make([]*auth.User, 0, len(demoUsers))
	for _, du := range demoUsers {
		hash, err := auth.HashPassword(du.password)
		if err != nil {
			return fmt.Errorf("hashing demo password: %w", err)
		}
		u := &auth.User{Username: du.username, PasswordHash: hash}
		if err := authRepo.CreateUser(ctx, u); err != nil {
			return fmt.Errorf("creating user %s: %w", du.username, err)
		}
		if err := authRepo.GrantRole(ctx, u.ID, h.ID, du.role); err != nil {
			return fmt.Errorf("granting role to %s: %w", du.username, err)
		}
		users = append(users, u)
	}

	if err := seedRooms(ctx, houseRepo, h); err != nil {
		return err
	}

	alarm := house.NewAlarm(1, 4321)
	if err := houseRepo.CreateAlarm(ctx, h.ID, alarm); err != nil {
		return fmt.Errorf("creating demo alarm: %w", err)
	}

	logger.Info("demo household seeded",
		"house_id", h.ID, "users", len(users),
		"admin", demoUsers[0].username)
	return nil
}

// seedRooms furnishes the demo house: a living room, a bedroom and a
// front hall with a coded lock.
func seedRooms(ctx context.Context, repo house.Repository, h *house.House) error {
	type deviceSpec struct {
		build func(id int64) house.Device
	}
	rooms := []struct {
		name    string
		devices []deviceSpec
	}{
		{
			name: "Living Room",
			devices: []deviceSpec{
				{func(id int64) house.Device { return house.NewCeilingLight(id, false, house.MaxShade, house.ColorWhite) }},
				{func(id int64) house.Device { return house.NewLamp(id, false, 60, house.ColorYellow) }},
				{func(id int64) house.Device { return house.NewLamp(id, false, 80, house.ColorWhite) }},
				{func(id int64) house.Device { return house.NewBlinds(id, true, false) }},
			},
		},
		{
			name: "Bedroom",
			devices: []deviceSpec{
				{func(id int64) house.Device { return house.NewCeilingLight(id, false, 40, house.ColorWhite) }},
				{func(id int64) house.Device { return house.NewBlinds(id, false, false) }},
			},
		},
		{
			name: "Front Hall",
			devices: []deviceSpec{
				{func(id int64) house.Device { return house.NewCeilingLight(id, false, house.MaxShade, house.ColorWhite) }},
				{func(id int64) house.Device { return house.NewLock(id, []string{"1234", "9999"}) }},
			},
		},
	}

	for _, spec := range rooms {
		room := house.NewRoom(h.NextRoomID, spec.name)
		for _, ds := range spec.devices {
			dev := ds.build(room.NextDeviceID)
			if err := room.AddDevice(dev); err != nil {
				return fmt.Errorf("furnishing %s: %w", spec.name, err)
			}
			room.NextDeviceID = dev.DeviceID() + 1
		}
		if err := repo.InsertRoom(ctx, h.ID, room); err != nil {
			return fmt.Errorf("creating room %s: %w", spec.name, err)
		}
		for _, dev := range room.Devices() {
			if err := repo.InsertDevice(ctx, h.ID, room.ID, dev); err != nil {
				return fmt.Errorf("persisting device in %s: %w", spec.name, err)
			}
		}
		h.NextRoomID = room.ID + 1
		h.AddRoom(room)
	}
	return nil
}
