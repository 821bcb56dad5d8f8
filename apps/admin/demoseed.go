package main

import (
	"context"
	"time"

	"github.com/KeviinDCV/NotionK4S/core/chat"
	"github.com/KeviinDCV/NotionK4S/core/task"
	"github.com/KeviinDCV/NotionK4S/core/user"
)

// seedDemo loads the demo workspace fixtures into the connected database:
// an owner and a member account, a welcome task and the first chat message.
// Re-running against an already seeded database is a no-op.
func (cli *commandLine) seedDemo() error {
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, "demo"); err == nil {
		logger.Println("demo fixtures already present; nothing to do")
		return nil
	} else if err != user.ErrNotFound {
		return err
	}

	owner, err := cli.ensureDemoUser(ctx, user.User{
		Name:      "Demo User",
		Username:  "demo",
		Email:     "demo@localhost",
		IsActive:  true,
		Roles:     []string{user.RoleAdminOwner},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return err
	}

	mate, err := cli.ensureDemoUser(ctx, user.User{
		Name:      "Alex Demo",
		Username:  "alexdemo",
		Email:     "alex@localhost",
		IsActive:  true,
		Roles:     []string{user.RoleMember},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return err
	}

	if _, err = cli.taskRepo.CreateTask(ctx, task.Task{
		Title:     "Welcome to the board",
		Status:    task.StatusTodo,
		Priority:  task.PriorityMedium,
		CreatedBy: owner.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return err
	}

	if _, err = cli.chatRepo.CreateMessage(ctx, chat.Message{
		ChannelID: chat.DefaultChannel,
		UserID:    mate.ID,
		Body:      "Hey! This is the demo workspace.",
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return err
	}

	logger.Println("demo fixtures loaded")
	return nil
}

func (cli *commandLine) ensureDemoUser(ctx context.Context, u user.User) (user.User, error) {
	if existing, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, u.Username); err == nil {
		return existing, nil
	} else if err != user.ErrNotFound {
		return user.User{}, err
	}
	if err := u.SetPassword("Demo#Pass1"); err != nil {
		return user.User{}, err
	}
	return cli.usrRepo.CreateUser(ctx, u)
}
