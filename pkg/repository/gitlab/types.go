package gitlab

// Project, Tag and File mirror the subset of the GitLab REST response
// shapes the client needs. Adapted verbatim from the teacher's
// pkg/client/gitlab/types.go.
type (
	Project struct {
		ID                int      `json:"id"`
		Name              string   `json:"name"`
		PathWithNamespace string   `json:"path_with_namespace"`
		SSHURL            string   `json:"ssh_url_to_repo"`
		HTTPURL           string   `json:"http_url_to_repo"`
		WWWURL            string   `json:"web_url"`
		TagList           []string `json:"tag_list"`
	}

	Branch struct {
		Name   string        `json:"name"`
		Commit commitInlined `json:"commit"`
	}

	commitInlined struct {
		ID        string `json:"id"`
		CommittedDate string `json:"committed_date"`
	}

	Tag struct {
		Name   string        `json:"name"`
		Commit commitInlined `json:"commit"`
	}

	File struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
)
