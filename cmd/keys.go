package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/andrewpaige1/bookswap-api/config"
	"github.com/andrewpaige1/bookswap-api/errors"
	"github.com/andrewpaige1/bookswap-api/keystore"
	"github.com/andrewpaige1/bookswap-api/models"
)

func init() {
	KeysCheckCommand.Flags().Bool("prune", false, "remove keys that belong to no user")

	KeysCommand.AddCommand(&KeysCheckCommand)
	KeysCommand.AddCommand(&KeysRotateCommand)
	RootCmd.AddCommand(&KeysCommand)
}

var KeysCommand = cobra.Command{
	Use:   "keys",
	Short: "Manage the per-user encryption keys",
	Long:  "Manage the per-user encryption keys",
}

var KeysCheckCommand = cobra.Command{
	Use:   "check",
	Short: "Verify every sealed profile can be opened",
	Long:  "Verify every user with a sealed address or zip has a key that opens it, and list keys of unknown users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := config.Open(env.DBDriver, env.DBURL, gormlogger.Warn)
		if err != nil {
			return err
		}
		keys, err := keystore.Open(env.KeystorePath)
		if err != nil {
			return err
		}

		var users []models.User
		if err := db.Unscoped().Find(&users).Error; err != nil {
			return err
		}

		problems, orphans, err := checkKeys(keys, users)
		if err != nil {
			return err
		}

		prune, _ := cmd.Flags().GetBool("prune")
		for _, id := range orphans {
			if !prune {
				problems = append(problems, fmt.Sprintf("key for unknown user %d", id))
				continue
			}
			if err := keys.Remove(id); err != nil {
				return err
			}
			logger.Info("Removed orphan key", zap.Uint("user_id", id))
		}

		for _, p := range problems {
			cmd.Println(p)
		}
		if len(problems) > 0 {
			return errors.New(fmt.Sprintf("%d key problem(s) found", len(problems)))
		}

		ids, err := keys.Users()
		if err != nil {
			return err
		}
		cmd.Printf("%d users, %d keys, all good\n", len(users), len(ids))
		return nil
	},
}

var KeysRotateCommand = cobra.Command{
	Use:   "rotate <username>",
	Short: "Re-seal a user's profile under a new key",
	Long:  "Re-seal a user's profile under a new key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := config.Open(env.DBDriver, env.DBURL, gormlogger.Warn)
		if err != nil {
			return err
		}
		keys, err := keystore.Open(env.KeystorePath)
		if err != nil {
			return err
		}

		var user models.User
		if err := db.Where("username = ?", args[0]).First(&user).Error; err != nil {
			return errors.New(fmt.Sprintf("user %q not found", args[0]), errors.NotFound(), errors.WithCause(err))
		}

		if err := keys.Rotate(user.ID, &user.Address, &user.Zip); err != nil {
			return err
		}

		// The key file already holds the new key
		err = db.Model(&user).Updates(map[string]interface{}{"address": user.Address, "zip": user.Zip}).Error
		if err != nil {
			logger.Error("Key rotated but profile not saved, sealed fields are unreadable",
				zap.String("username", user.Username), zap.Error(err))
			return err
		}

		logger.Info("Rotated key", zap.String("username", user.Username))
		return nil
	},
}

// checkKeys reports users whose sealed fields cannot be opened, and returns
// the ids of keys that belong to no user.
func checkKeys(keys *keystore.Store, users []models.User) ([]string, []uint, error) {
	var problems []string
	known := make(map[uint]bool, len(users))

	for _, u := range users {
		known[u.ID] = true
		for field, sealed := range map[string]string{"address": u.Address, "zip": u.Zip} {
			if _, err := keys.Unseal(u.ID, sealed); err != nil {
				problems = append(problems, fmt.Sprintf("user %s (%d): cannot open %s: %v", u.Username, u.ID, field, err))
			}
		}
	}

	ids, err := keys.Users()
	if err != nil {
		return nil, nil, err
	}
	var orphans []uint
	for _, id := range ids {
		if !known[id] {
			orphans = append(orphans, id)
		}
	}
	return problems, orphans, nil
}
