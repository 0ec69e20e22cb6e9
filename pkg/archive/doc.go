// Package archive writes the export container: a single zip file holding
// JSON documents and raw product images.
//
// Each entry picks its own compression. JSON is deflated, images are
// stored as fetched. Entry names are unique within one archive.
//
//	w, err := archive.Open("dawanda_2017-10-03_12-00-00.zip")
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//
//	if err := w.WriteJSON("profile.json", profile); err != nil {
//	    return err
//	}
//	err = w.CreateEntry("product_images/1.jpg", false, func(dst io.Writer) error {
//	    _, err := io.Copy(dst, body)
//	    return err
//	})
package archive
