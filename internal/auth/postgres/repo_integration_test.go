// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/tradejournal/tradejournal/internal/auth"
	"github.com/tradejournal/tradejournal/internal/auth/postgres"
	"github.com/tradejournal/tradejournal/pkg/errutil"
)

func mustUser(id, email string, role auth.Role, hash string) *auth.User {
	u, err := auth.NewUser(id, "Trader "+id, email, role, hash)
	Expect(err).NotTo(HaveOccurred())
	return u
}

var _ = Describe("CredentialRepository", func() {
	var repo *postgres.CredentialRepository

	BeforeEach(func(ctx context.Context) {
		truncateAll(ctx)
		repo = postgres.NewCredentialRepository(testPool)
		Expect(repo.Create(ctx, mustUser("E001", "Ada@Co.com", auth.RoleUser, "h1"))).To(Succeed())
	})

	It("finds by employee ID or case-insensitive email", func(ctx context.Context) {
		u, err := repo.FindByIdentifier(ctx, "E001")
		Expect(err).NotTo(HaveOccurred())
		Expect(u.Email).To(Equal("Ada@Co.com"))

		u, err = repo.FindByIdentifier(ctx, "ada@co.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(u.EmployeeID).To(Equal("E001"))
	})

	It("reports unknown users as not found", func(ctx context.Context) {
		_, err := repo.FindByEmployeeID(ctx, "E404")
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("rejects duplicate employee IDs and emails", func(ctx context.Context) {
		err := repo.Create(ctx, mustUser("E001", "other@co.com", auth.RoleUser, "h"))
		Expect(errutil.Code(err)).To(Equal(auth.CodeUserExists))

		err = repo.Create(ctx, mustUser("E002", "ADA@co.com", auth.RoleUser, "h"))
		Expect(errutil.Code(err)).To(Equal(auth.CodeUserExists))
	})

	It("sets passwords and status", func(ctx context.Context) {
		Expect(repo.SetPassword(ctx, "E001", "h2", true, true)).To(Succeed())
		Expect(repo.SetStatus(ctx, "E001", auth.StatusInactive)).To(Succeed())

		u, err := repo.FindByEmail(ctx, "ada@co.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(u.PasswordHash).To(Equal("h2"))
		Expect(u.RequirePasswordChange).To(BeTrue())
		Expect(u.IsTemporaryPassword).To(BeTrue())
		Expect(u.IsActive()).To(BeFalse())

		Expect(repo.SetPassword(ctx, "E404", "h", false, false)).To(MatchError(auth.ErrNotFound))
	})

	It("lists users by employee ID", func(ctx context.Context) {
		Expect(repo.Create(ctx, mustUser("A001", "admin@co.com", auth.RoleAdmin, "h"))).To(Succeed())
		users, err := repo.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(users).To(HaveLen(2))
		Expect(users[0].EmployeeID).To(Equal("A001"))
	})
})

var _ = Describe("TokenRepository", func() {
	var tokens *postgres.TokenRepository

	BeforeEach(func(ctx context.Context) {
		truncateAll(ctx)
		creds := postgres.NewCredentialRepository(testPool)
		Expect(creds.Create(ctx, mustUser("E001", "ada@co.com", auth.RoleUser, "h"))).To(Succeed())
		tokens = postgres.NewTokenRepository(testPool)
	})

	It("keeps one token per user", func(ctx context.Context) {
		first, err := tokens.Issue(ctx, "E001")
		Expect(err).NotTo(HaveOccurred())
		second, err := tokens.Issue(ctx, "E001")
		Expect(err).NotTo(HaveOccurred())

		Expect(tokens.Verify(ctx, first.Value)).To(BeFalse())
		Expect(tokens.Verify(ctx, second.Value)).To(BeTrue())

		got, err := tokens.Lookup(ctx, second.Value)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.UserID).To(Equal("E001"))
		Expect(got.IssuedAt).To(BeTemporally("~", second.IssuedAt, time.Millisecond))
	})

	It("keeps one token under concurrent logins", func(ctx context.Context) {
		var wg sync.WaitGroup
		for range 16 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := tokens.Issue(ctx, "E001")
				Expect(err).NotTo(HaveOccurred())
			}()
		}
		wg.Wait()

		var n int
		Expect(testPool.QueryRow(ctx, `SELECT count(*) FROM tokens WHERE user_id = 'E001'`).Scan(&n)).To(Succeed())
		Expect(n).To(Equal(1))
	})

	It("revokes by value and by user", func(ctx context.Context) {
		tok, err := tokens.Issue(ctx, "E001")
		Expect(err).NotTo(HaveOccurred())

		Expect(tokens.Revoke(ctx, tok.Value)).To(BeTrue())
		Expect(tokens.Revoke(ctx, tok.Value)).To(BeFalse())

		_, err = tokens.Issue(ctx, "E001")
		Expect(err).NotTo(HaveOccurred())
		Expect(tokens.RevokeByUser(ctx, "E001")).To(BeTrue())
		Expect(tokens.RevokeByUser(ctx, "E001")).To(BeFalse())
	})
})

var _ = Describe("AuthService on PostgreSQL", func() {
	It("runs the reset and rotate flow", func(ctx context.Context) {
		truncateAll(ctx)
		creds := postgres.NewCredentialRepository(testPool)
		tokens := postgres.NewTokenRepository(testPool)
		hasher := auth.NewHasher(auth.DefaultBootstrapPassword)
		Expect(creds.Create(ctx, mustUser("E001", "ada@co.com", auth.RoleUser, hasher.Hash("correctpw")))).To(Succeed())

		svc, err := auth.NewAuthService(creds, tokens, hasher)
		Expect(err).NotTo(HaveOccurred())

		reset, err := svc.ResetPassword(ctx, "ada@co.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(reset.Changed).To(BeTrue())

		res, err := svc.Login(ctx, "E001", auth.DefaultBootstrapPassword)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Outcome).To(Equal(auth.LoginPasswordChangeRequired))

		Expect(svc.ChangePassword(ctx, auth.ChangePasswordRequest{
			EmployeeID:      "E001",
			CurrentPassword: auth.DefaultBootstrapPassword,
			NewPassword:     "freshpass1",
			ConfirmPassword: "freshpass1",
		})).To(Succeed())

		res, err = svc.Login(ctx, "ada@co.com", "freshpass1")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Outcome).To(Equal(auth.LoginAuthenticated))
		Expect(res.Token).NotTo(BeNil())
		Expect(svc.Logout(ctx, res.Token.Value)).To(Succeed())
	})
})
