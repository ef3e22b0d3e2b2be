// rewardctl is the operator CLI for balances, airdrops and contest entries.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/app"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/config"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/events"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/identity"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/ledger"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/models"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/wallet"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

func main() {
	loadEnv()

	mode := flag.String("mode", "balance", "balance | airdrop | enter-contest | ensure-account | status | sync")
	owner := flag.String("owner", "", "ledger owner address")
	subject := flag.String("subject", "rewardctl", "identity subject used by -mode sync")
	keypair := flag.String("keypair", "", "path to a solana-keygen JSON keypair (enter-contest, ensure-account)")
	sig := flag.String("sig", "", "transaction signature (status)")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	verbose := flag.Bool("v", false, "log service activity")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if !*verbose {
		logger.SetOutput(io.Discard)
	}

	cfg := config.Load()
	if err := cfg.ValidateServices(); err != nil {
		fmt.Println("invalid configuration:", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		fmt.Println("failed to init services:", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := run(ctx, a, *mode, *owner, *subject, *keypair, *sig); err != nil {
		fmt.Printf("%s failed: %v\n", *mode, err)
		a.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, mode, owner, subject, keypairPath, sig string) error {
	switch mode {
	case "balance":
		if owner == "" {
			return errors.New("missing -owner")
		}
		bal, err := a.Ledger.GetBalance(ctx, owner)
		if err != nil {
			return err
		}
		fmt.Printf("owner=%s mint=%s balance=%s\n", owner, a.Config.TokenMint, bal.String())

	case "sync":
		if owner == "" {
			return errors.New("missing -owner")
		}
		sess := identity.NewSession("rewardctl", time.Now())
		res, err := a.Identity.OnPrincipal(ctx, sess, identity.PrincipalFrom(subject, owner))
		if err != nil {
			return err
		}
		u := res.User
		fmt.Printf("owner=%s created=%v repaired=%v xp_awarded=%d xp=%d level=%d stage=%s streak=%d\n",
			u.Address, res.Created, res.Repaired, res.XPAwarded, u.XP, u.Level, u.Stage, u.LoginStreak)

	case "airdrop":
		if owner == "" {
			return errors.New("missing -owner")
		}
		if a.Airdrops == nil {
			return errors.New("TREASURY_PRIVATE_KEY is not set")
		}
		u, err := a.Identity.User(ctx, owner)
		if err != nil {
			return err
		}
		res, err := a.Airdrops.Dispense(ctx, u)
		if err != nil {
			if res != nil && res.Signature != "" {
				fmt.Printf("signature=%s (check with -mode status)\n", res.Signature)
			}
			return err
		}
		fmt.Printf("outcome=%s amount=%s sig=%s\n", res.Outcome, res.Amount.String(), res.Signature)

	case "enter-contest":
		kp, err := loadKeypair(keypairPath)
		if err != nil {
			return err
		}
		tr, err := a.Ledger.Transfer(ctx, ledger.TransferIntent{
			Source:      kp.Address(),
			Destination: a.Config.ContestReceiver,
			Mint:        a.Config.TokenMint,
			Amount:      a.Config.ContestFee,
		}, kp)
		if err != nil {
			if tr != nil && tr.Signature != "" {
				fmt.Printf("signature=%s (check with -mode status)\n", tr.Signature)
			}
			return err
		}
		events.Emit(ctx, a.Events, a.Logger, &models.RewardEvent{
			Kind:      models.RewardContestEntry,
			Address:   kp.Address(),
			Amount:    a.Config.ContestFee,
			Signature: tr.Signature,
		})
		fmt.Printf("entered contest fee=%s sig=%s\n", a.Config.ContestFee.String(), tr.Signature)

	case "ensure-account":
		var payer ledger.Signer
		if keypairPath != "" {
			kp, err := loadKeypair(keypairPath)
			if err != nil {
				return err
			}
			payer = kp
			if owner == "" {
				owner = kp.Address()
			}
		} else if a.Treasury != nil {
			payer = a.Treasury
		}
		if owner == "" {
			return errors.New("missing -owner")
		}
		account, created, err := a.Ledger.EnsureAccount(ctx, owner, payer)
		if err != nil {
			return err
		}
		fmt.Printf("owner=%s account=%s created=%v\n", owner, account.String(), created)

	case "status":
		if sig == "" {
			return errors.New("missing -sig")
		}
		st, err := a.Ledger.SignatureStatus(ctx, sig)
		if err != nil {
			return err
		}
		fmt.Printf("sig=%s status=%s\n", sig, st.String())

	default:
		return fmt.Errorf("unknown -mode %q", mode)
	}
	return nil
}

func loadKeypair(path string) (*wallet.Keypair, error) {
	if path == "" {
		return nil, errors.New("missing -keypair")
	}
	return wallet.KeypairFromFile(path)
}
