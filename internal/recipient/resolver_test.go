package recipient

import (
	"context"
	"io"
	"log"
	"reflect"
	"testing"
	"time"

	"github.com/homescope/reports-back/internal/domain"
	"github.com/homescope/reports-back/internal/repository"
)

func testResolver() (*Resolver, *repository.MemoryContactsRepository, *repository.MemoryAccountsRepository) {
	contacts := repository.NewMemoryContactsRepository()
	accounts := repository.NewMemoryAccountsRepository()
	logger := log.New(io.Discard, "", 0)
	return NewResolver(contacts, accounts, logger), contacts, accounts
}

func TestResolveContactAndManualEmail(t *testing.T) {
	resolver, contacts, _ := testResolver()
	contacts.PutContact(&domain.Contact{ID: "c1", AccountID: "acct-1", Email: "buyer@example.com"})

	emails, err := resolver.Resolve(context.Background(), "acct-1", []domain.RecipientDescriptor{
		domain.ContactRecipient("c1"),
		domain.ManualEmailRecipient("direct@example.com"),
		domain.ManualEmailRecipient("not-an-email"),
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{"buyer@example.com", "direct@example.com"}
	if !reflect.DeepEqual(emails, want) {
		t.Errorf("emails = %v, want %v", emails, want)
	}
}

func TestResolveSkipsOtherTenantsContacts(t *testing.T) {
	resolver, contacts, _ := testResolver()
	contacts.PutContact(&domain.Contact{ID: "c1", AccountID: "acct-2", Email: "other@example.com"})

	emails, err := resolver.Resolve(context.Background(), "acct-1", []domain.RecipientDescriptor{
		domain.ContactRecipient("c1"),
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(emails) != 0 {
		t.Errorf("leaked emails from another tenant: %v", emails)
	}
}

func TestResolveSponsoredAgent(t *testing.T) {
	resolver, _, accounts := testResolver()
	sponsor := "affiliate-1"
	accounts.PutAccount(&domain.Account{ID: "agent-1", SponsorAccountID: &sponsor})
	accounts.PutUser(domain.User{
		ID: "u2", AccountID: "agent-1", Email: "late@example.com",
		CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	accounts.PutUser(domain.User{
		ID: "u1", AccountID: "agent-1", Email: "first@example.com",
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	emails, err := resolver.Resolve(context.Background(), "affiliate-1", []domain.RecipientDescriptor{
		domain.SponsoredAgentRecipient("agent-1"),
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(emails) != 1 || emails[0] != "first@example.com" {
		t.Errorf("emails = %v, want earliest user first@example.com", emails)
	}
}

func TestResolveSponsoredAgentRejectsWrongSponsor(t *testing.T) {
	resolver, _, accounts := testResolver()
	sponsor := "affiliate-2"
	accounts.PutAccount(&domain.Account{ID: "agent-1", SponsorAccountID: &sponsor})
	accounts.PutUser(domain.User{ID: "u1", AccountID: "agent-1", Email: "agent@example.com"})

	emails, err := resolver.Resolve(context.Background(), "affiliate-1", []domain.RecipientDescriptor{
		domain.SponsoredAgentRecipient("agent-1"),
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(emails) != 0 {
		t.Errorf("resolved an agent sponsored by a different account: %v", emails)
	}
}

func TestResolveGroupExpandsMembers(t *testing.T) {
	resolver, contacts, accounts := testResolver()
	contacts.PutContact(&domain.Contact{ID: "c1", AccountID: "acct-1", Email: "one@example.com"})
	contacts.PutContact(&domain.Contact{ID: "c2", AccountID: "acct-1", Email: "two@example.com"})
	contacts.PutGroup(&domain.ContactGroup{ID: "g1", AccountID: "acct-1"},
		domain.ContactGroupMember{GroupID: "g1", MemberType: domain.GroupMemberContact, MemberID: "c1"},
		domain.ContactGroupMember{GroupID: "g1", MemberType: domain.GroupMemberContact, MemberID: "c2"},
		domain.ContactGroupMember{GroupID: "g1", MemberType: domain.GroupMemberSponsoredAgent, MemberID: "agent-1"},
	)
	sponsor := "acct-1"
	accounts.PutAccount(&domain.Account{ID: "agent-1", SponsorAccountID: &sponsor})
	accounts.PutUser(domain.User{ID: "u1", AccountID: "agent-1", Email: "agent@example.com"})

	emails, err := resolver.Resolve(context.Background(), "acct-1", []domain.RecipientDescriptor{
		domain.GroupRecipient("g1"),
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{"one@example.com", "two@example.com", "agent@example.com"}
	if !reflect.DeepEqual(emails, want) {
		t.Errorf("emails = %v, want %v", emails, want)
	}
}

func TestResolveDeduplicatesCaseInsensitively(t *testing.T) {
	resolver, contacts, _ := testResolver()
	contacts.PutContact(&domain.Contact{ID: "c1", AccountID: "acct-1", Email: "Buyer@Example.com"})

	emails, err := resolver.Resolve(context.Background(), "acct-1", []domain.RecipientDescriptor{
		domain.ContactRecipient("c1"),
		domain.ManualEmailRecipient("buyer@example.com"),
		domain.ManualEmailRecipient("buyer@example.com"),
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(emails) != 1 {
		t.Errorf("emails = %v, want one deduplicated address", emails)
	}
}

func TestResolveLegacyBareStringDescriptor(t *testing.T) {
	resolver, _, _ := testResolver()

	decoded, err := domain.DecodeRecipients([]byte(`["legacy@example.com", {"type":"manual_email","email":"typed@example.com"}]`))
	if err != nil {
		t.Fatalf("DecodeRecipients: %v", err)
	}

	emails, err := resolver.Resolve(context.Background(), "acct-1", decoded)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{"legacy@example.com", "typed@example.com"}
	if !reflect.DeepEqual(emails, want) {
		t.Errorf("emails = %v, want %v", emails, want)
	}
}
