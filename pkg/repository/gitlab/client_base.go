package gitlab

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

// GetProjectList returns every project visible to the client's token.
func (c *Client) GetProjectList() ([]*Project, error) {
	endpoint := "projects"
	pageList, err := c.executeAPIMethod(endpoint)
	if err != nil {
		return nil, err
	}

	projectList := make([]*Project, 0)
	for _, body := range pageList {
		page := make([]*Project, 0)
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, err
		}
		projectList = append(projectList, page...)
	}

	return projectList, nil
}

// GetProjectByPath resolves a project by its namespaced path.
func (c *Client) GetProjectByPath(pathWithNamespace string) (*Project, error) {
	endpoint := fmt.Sprintf("projects/%s", url.QueryEscape(pathWithNamespace))
	pageList, err := c.executeAPIMethod(endpoint)
	if err != nil {
		return nil, err
	}
	if len(pageList) == 0 {
		return nil, errors.New("gitlab: no such project")
	}

	result := &Project{}
	if err := json.Unmarshal(pageList[0], result); err != nil {
		return nil, err
	}

	return result, nil
}

// GetTagList returns every tag of project.
func (c *Client) GetTagList(project *Project) ([]*Tag, error) {
	endpoint := fmt.Sprintf("projects/%d/repository/tags", project.ID)
	pageList, err := c.executeAPIMethod(endpoint)
	if err != nil {
		return nil, err
	}

	tagList := make([]*Tag, 0)
	for _, body := range pageList {
		page := make([]*Tag, 0)
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, err
		}
		tagList = append(tagList, page...)
	}

	return tagList, nil
}

// GetBranchList returns every branch of project.
func (c *Client) GetBranchList(project *Project) ([]*Branch, error) {
	endpoint := fmt.Sprintf("projects/%d/repository/branches", project.ID)
	pageList, err := c.executeAPIMethod(endpoint)
	if err != nil {
		return nil, err
	}

	branchList := make([]*Branch, 0)
	for _, body := range pageList {
		page := make([]*Branch, 0)
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, err
		}
		branchList = append(branchList, page...)
	}

	return branchList, nil
}

// GetFile fetches path as it existed at ref and returns its decoded bytes.
func (c *Client) GetFile(project *Project, path, ref string) ([]byte, error) {
	endpoint := fmt.Sprintf(
		"projects/%d/repository/files?file_path=%s&ref=%s",
		project.ID,
		url.QueryEscape(path),
		url.QueryEscape(ref),
	)
	pageList, err := c.executeAPIMethod(endpoint)
	if err != nil {
		return nil, err
	}
	if len(pageList) == 0 {
		return nil, errors.New("gitlab: no such file")
	}

	file := &File{}
	if err := json.Unmarshal(pageList[0], file); err != nil {
		return nil, err
	}

	if file.Encoding != "base64" {
		return nil, fmt.Errorf("gitlab: unknown file encoding %q", file.Encoding)
	}

	fileContent, err := base64.StdEncoding.DecodeString(file.Content)
	if err != nil {
		return nil, err
	}

	return fileContent, nil
}
