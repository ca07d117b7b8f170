// Package directory implements core.Authenticator against an LDAP
// directory service (Active Directory in practice). All protocol
// details (TLS, DN resolution, search scope, group lookup) stay behind
// the four-outcome AuthzResult contract.
package directory

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/OlsenSM91/Open-Server-Shares/internal/config"
	"github.com/OlsenSM91/Open-Server-Shares/internal/core"
)

// Conn is the subset of *ldap.Conn the authenticator uses. Tests
// substitute a fake; production code dials a real connection per call.
type Conn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close() error
}

// Dialer opens a directory connection. Separated out so tests can run
// without a reachable LDAP server.
type Dialer func(ctx context.Context) (Conn, error)

// LDAPAuthenticator verifies credentials with a search bind followed by
// a user bind, then enforces membership in the authorization group.
type LDAPAuthenticator struct {
	cfg  *config.Config
	dial Dialer
}

// NewLDAPAuthenticator creates an authenticator that dials cfg.LDAPURL
// per request. Connections are never shared between requests, so a hung
// directory call cannot block unrelated clients.
func NewLDAPAuthenticator(cfg *config.Config) *LDAPAuthenticator {
	return &LDAPAuthenticator{
		cfg:  cfg,
		dial: defaultDialer(cfg),
	}
}

// NewLDAPAuthenticatorWithDialer is like NewLDAPAuthenticator but with
// a custom dialer, used by tests.
func NewLDAPAuthenticatorWithDialer(cfg *config.Config, dial Dialer) *LDAPAuthenticator {
	return &LDAPAuthenticator{cfg: cfg, dial: dial}
}

func defaultDialer(cfg *config.Config) Dialer {
	return func(ctx context.Context) (Conn, error) {
		dialer := &net.Dialer{Timeout: cfg.LDAPTimeout}
		if deadline, ok := ctx.Deadline(); ok {
			dialer.Deadline = deadline
		}
		conn, err := ldap.DialURL(cfg.LDAPURL,
			ldap.DialWithDialer(dialer),
			ldap.DialWithTLSConfig(&tls.Config{
				InsecureSkipVerify: cfg.LDAPInsecureSkipVerify, //nolint:gosec // operator opt-in for lab domains
				MinVersion:         tls.VersionTLS12,
			}),
		)
		if err != nil {
			return nil, err
		}
		conn.SetTimeout(cfg.LDAPTimeout)
		return conn, nil
	}
}

// Name returns provider name for logging
func (a *LDAPAuthenticator) Name() string {
	return "ldap"
}

// Authenticate resolves the username to a DN with the service account,
// binds as the user, and checks authorization group membership. Every
// failure path degrades to a deny with a reason; the error return is
// always nil so callers cannot accidentally treat an outage as fatal.
func (a *LDAPAuthenticator) Authenticate(
	ctx context.Context,
	username, password string,
) (core.AuthzResult, error) {
	deny := func(reason core.DenyReason) (core.AuthzResult, error) {
		return core.AuthzResult{Allowed: false, Reason: reason, Username: username}, nil
	}

	// Empty bind passwords perform an anonymous bind on most servers,
	// which would look like a success. Reject up front.
	if username == "" || password == "" {
		return deny(core.ReasonInvalidCredentials)
	}

	if a.cfg.LDAPSearchUser == "" || a.cfg.LDAPSearchPassword == "" {
		log.Printf("[Directory] Missing service account credentials, denying user=%s", username)
		return deny(core.ReasonDirectoryUnavailable)
	}

	conn, err := a.dial(ctx)
	if err != nil {
		log.Printf("[Directory] Dial failed: %v", err)
		return deny(core.ReasonDirectoryUnavailable)
	}
	defer conn.Close()

	// Lookup bind with the service account.
	if err := conn.Bind(a.searchDN(), a.cfg.LDAPSearchPassword); err != nil {
		log.Printf("[Directory] Search bind failed: %v", err)
		return deny(core.ReasonDirectoryUnavailable)
	}

	userDN, memberOf, err := a.resolveUser(conn, username)
	if err != nil {
		log.Printf("[Directory] Search failed for user=%s: %v", username, err)
		return deny(core.ReasonDirectoryUnavailable)
	}
	if userDN == "" {
		log.Printf("[Directory] User not found: %s", username)
		return deny(core.ReasonInvalidCredentials)
	}

	// Identity bind with the user's own credentials. Any bind failure
	// is an invalid credential from the caller's point of view.
	if err := conn.Bind(userDN, password); err != nil {
		log.Printf("[Directory] Bind failed for user=%s: %v", username, err)
		return deny(core.ReasonInvalidCredentials)
	}

	member, err := a.isGroupMember(conn, userDN, memberOf)
	if err != nil {
		// Fail closed: an unverifiable group check is never an Allow.
		log.Printf("[Directory] Group check failed for user=%s: %v", username, err)
		return deny(core.ReasonDirectoryUnavailable)
	}
	if !member {
		log.Printf("[Directory] User %s is not a member of %s", username, a.cfg.LDAPGroup)
		return deny(core.ReasonNotInGroup)
	}

	return core.AuthzResult{
		Allowed:  true,
		Reason:   core.ReasonOk,
		Username: username,
		UserDN:   userDN,
	}, nil
}

// searchDN returns the service account bind DN. A value that already
// looks like a DN is used as-is; a bare account name is anchored under
// the search base the way the directory is provisioned.
func (a *LDAPAuthenticator) searchDN() string {
	if strings.Contains(a.cfg.LDAPSearchUser, "=") {
		return a.cfg.LDAPSearchUser
	}
	return fmt.Sprintf("CN=%s,%s", a.cfg.LDAPSearchUser, a.cfg.LDAPSearchBase)
}

// resolveUser finds the entry whose sAMAccountName matches username and
// returns its DN and memberOf values. An empty DN means no match.
func (a *LDAPAuthenticator) resolveUser(conn Conn, username string) (string, []string, error) {
	req := ldap.NewSearchRequest(
		a.cfg.LDAPSearchBase,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		2, // enough to detect ambiguous matches
		int(a.cfg.LDAPTimeout.Seconds()),
		false,
		fmt.Sprintf("(sAMAccountName=%s)", ldap.EscapeFilter(username)),
		[]string{"distinguishedName", "memberOf"},
		nil,
	)

	res, err := conn.Search(req)
	if err != nil {
		return "", nil, err
	}
	if len(res.Entries) == 0 {
		return "", nil, nil
	}
	if len(res.Entries) > 1 {
		return "", nil, fmt.Errorf("ambiguous account name %q: %d entries", username, len(res.Entries))
	}

	entry := res.Entries[0]
	dn := entry.GetAttributeValue("distinguishedName")
	if dn == "" {
		dn = entry.DN
	}
	return dn, entry.GetAttributeValues("memberOf"), nil
}

// isGroupMember reports whether userDN belongs to the authorization
// group, preferring the memberOf values already fetched and falling
// back to a group-side member search when the attribute is absent.
func (a *LDAPAuthenticator) isGroupMember(conn Conn, userDN string, memberOf []string) (bool, error) {
	for _, groupDN := range memberOf {
		if groupCN(groupDN) == strings.ToLower(a.cfg.LDAPGroup) {
			return true, nil
		}
	}
	if len(memberOf) > 0 {
		return false, nil
	}

	// memberOf missing entirely: query the group's member list.
	req := ldap.NewSearchRequest(
		a.cfg.LDAPSearchBase,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		1,
		int(a.cfg.LDAPTimeout.Seconds()),
		false,
		fmt.Sprintf("(&(objectClass=group)(cn=%s)(member=%s))",
			ldap.EscapeFilter(a.cfg.LDAPGroup), ldap.EscapeFilter(userDN)),
		[]string{"cn"},
		nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		return false, err
	}
	return len(res.Entries) > 0, nil
}

// groupCN extracts the lowercased CN value from the first RDN of a
// group DN like "CN=ShareManagement,OU=Groups,DC=domain,DC=local".
func groupCN(groupDN string) string {
	first := groupDN
	if idx := strings.Index(groupDN, ","); idx >= 0 {
		first = groupDN[:idx]
	}
	first = strings.TrimSpace(first)
	if !strings.HasPrefix(strings.ToUpper(first), "CN=") {
		return ""
	}
	return strings.ToLower(first[3:])
}
