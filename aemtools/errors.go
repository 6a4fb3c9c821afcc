package aemtools

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ggoodman/aem-mcp-server-go/aem"
	"github.com/ggoodman/aem-mcp-server-go/credentials"
	"github.com/ggoodman/aem-mcp-server-go/sites"
)

func errorKind(err error) string {
	var cfgErr *credentials.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		return aem.KindConfiguration.String()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Cancelled"
	}
	var aerr *aem.Error
	if errors.As(err, &aerr) {
		return aerr.Kind.String()
	}
	return "InternalError"
}

// remediation suggests a next step for err. Search failures suggest the
// other auth scheme; other auth rejections get the same advice regardless of
// kind.
func remediation(err error, scheme string) string {
	var cfgErr *credentials.ConfigurationError
	if errors.As(err, &cfgErr) {
		return ""
	}
	if k, ok := aem.KindOf(err); ok && k == aem.KindSearch {
		return searchRemediation(scheme)
	}
	status := aem.StatusOf(err)
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Sprintf("AEM rejected the %s credentials. Check %s or %s/%s and the user's permissions on the target path.",
			orUnknown(scheme), credentials.EnvToken, credentials.EnvUsername, credentials.EnvPassword)
	}
	var aerr *aem.Error
	if !errors.As(err, &aerr) {
		return ""
	}
	switch aerr.Kind {
	case aem.KindConflict:
		return "Content already exists at this path. Retry with overwrite set to true to replace it or choose a different name."
	case aem.KindProvisioning:
		if sites.IsWriteConflict(aerr.Status, aerr.Error()) {
			return "The repository reported a write conflict. Retry with overwrite set to true to replace the existing content."
		}
		return "Check that the parent path exists and that the user may create pages there."
	case aem.KindNotFound:
		return "Verify the path. Use aem_list_sites or aem_search_assets to find existing content."
	case aem.KindTransport:
		return fmt.Sprintf("Could not reach AEM. Check %s or the aemUrl argument.", credentials.EnvURL)
	case aem.KindConfiguration, aem.KindValidation:
		return "Adjust the tool arguments and retry."
	}
	return ""
}

// searchRemediation points at the scheme that was not used. QueryBuilder on
// some managed-cloud environments accepts only one of them.
func searchRemediation(scheme string) string {
	switch credentials.Scheme(scheme) {
	case credentials.SchemeBearer:
		return fmt.Sprintf("The search ran with bearer auth. Some AEM as a Cloud Service environments only accept basic auth on QueryBuilder: set %s and %s (or pass username and password) and retry. Also check damPath.",
			credentials.EnvUsername, credentials.EnvPassword)
	case credentials.SchemeBasic:
		return fmt.Sprintf("The search ran with basic auth. If this environment expects an access token, set %s (or pass token) and retry. Also check damPath and the user's read access.",
			credentials.EnvToken)
	}
	return "Check damPath and the credentials, then retry the search."
}

func orUnknown(s string) string {
	if s == "" {
		return "configured"
	}
	return s
}
